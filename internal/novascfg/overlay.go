package novascfg

import (
	"flag"
)

// Overrides holds the CLI surface spec §6 names. Every field is an
// optional pointer the way internal/config/tuning.go's TuningConfig
// overlays optional JSON fields onto hardcoded defaults; here an unset
// field means "keep the processing document's value" instead of "use
// the package default".
type Overrides struct {
	FromDate *string
	ToDate   *string
	Volcano  *string
	Workdir  *string

	OutputDirectory *string
	TempDirectory   *string
	WindFieldFile   *string
	MaxThreadNum    *int

	IncludeSubDirsLocal *bool
	IncludeSubDirsFTP   *bool
	FTPDirectory        *string
	FTPUsername         *string
	FTPPassword         *string
	UploadResults       *bool

	Mode     *string
	Molecule *string
}

// ParseOverrides parses the CLI surface spec §6 lists (--FromDate,
// --ToDate, --Volcano, --Workdir, --outputdirectory, --tempdirectory,
// --WindFieldFile, --MaxThreadNum, --IncludeSubDirs_Local,
// --IncludeSubDirs_FTP, --FTPDirectory, --FTPUsername, --FTPPassword,
// --UploadResults, --mode, --molecule). A flag left off the command line
// leaves the corresponding Overrides field nil.
func ParseOverrides(args []string) (*Overrides, error) {
	fs := flag.NewFlagSet("ppp", flag.ContinueOnError)

	fromDate := fs.String("FromDate", "", "")
	toDate := fs.String("ToDate", "", "")
	volcano := fs.String("Volcano", "", "")
	workdir := fs.String("Workdir", "", "")
	outputDir := fs.String("outputdirectory", "", "")
	tempDir := fs.String("tempdirectory", "", "")
	windFieldFile := fs.String("WindFieldFile", "", "")
	maxThreadNum := fs.Int("MaxThreadNum", -1, "")
	includeLocal := fs.Bool("IncludeSubDirs_Local", false, "")
	includeFTP := fs.Bool("IncludeSubDirs_FTP", false, "")
	ftpDir := fs.String("FTPDirectory", "", "")
	ftpUser := fs.String("FTPUsername", "", "")
	ftpPass := fs.String("FTPPassword", "", "")
	uploadResults := fs.Bool("UploadResults", false, "")
	mode := fs.String("mode", "", "")
	molecule := fs.String("molecule", "", "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var o Overrides
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "FromDate":
			o.FromDate = fromDate
		case "ToDate":
			o.ToDate = toDate
		case "Volcano":
			o.Volcano = volcano
		case "Workdir":
			o.Workdir = workdir
		case "outputdirectory":
			o.OutputDirectory = outputDir
		case "tempdirectory":
			o.TempDirectory = tempDir
		case "WindFieldFile":
			o.WindFieldFile = windFieldFile
		case "MaxThreadNum":
			o.MaxThreadNum = maxThreadNum
		case "IncludeSubDirs_Local":
			o.IncludeSubDirsLocal = includeLocal
		case "IncludeSubDirs_FTP":
			o.IncludeSubDirsFTP = includeFTP
		case "FTPDirectory":
			o.FTPDirectory = ftpDir
		case "FTPUsername":
			o.FTPUsername = ftpUser
		case "FTPPassword":
			o.FTPPassword = ftpPass
		case "UploadResults":
			o.UploadResults = uploadResults
		case "mode":
			o.Mode = mode
		case "molecule":
			o.Molecule = molecule
		}
	})
	return &o, nil
}

// Apply overlays the set fields onto doc, CLI taking precedence over the
// processing document (spec §6 "CLI overrides any processing-XML value";
// seed scenario S6 pins this for FromDate).
func (o *Overrides) Apply(doc *ProcessingDocument) {
	if o == nil {
		return
	}
	if o.FromDate != nil {
		doc.FromDate = *o.FromDate
	}
	if o.ToDate != nil {
		doc.ToDate = *o.ToDate
	}
	if o.Volcano != nil {
		doc.Volcano = *o.Volcano
	}
	if o.Workdir != nil {
		doc.LocalDirectory = *o.Workdir
	}
	if o.OutputDirectory != nil {
		doc.OutputDirectory = *o.OutputDirectory
	}
	if o.TempDirectory != nil {
		doc.TempDirectory = *o.TempDirectory
	}
	if o.WindFieldFile != nil {
		doc.WindFieldFile = *o.WindFieldFile
	}
	if o.MaxThreadNum != nil {
		doc.MaxThreadNum = *o.MaxThreadNum
	}
	if o.IncludeSubDirsLocal != nil {
		doc.IncludeSubDirsLocal = *o.IncludeSubDirsLocal
	}
	if o.IncludeSubDirsFTP != nil {
		doc.IncludeSubDirsFTP = *o.IncludeSubDirsFTP
	}
	if o.FTPDirectory != nil {
		doc.FTPDirectory = *o.FTPDirectory
	}
	if o.FTPUsername != nil {
		doc.FTPUsername = *o.FTPUsername
	}
	if o.FTPPassword != nil {
		doc.FTPPassword = *o.FTPPassword
	}
	if o.UploadResults != nil {
		doc.UploadResults = *o.UploadResults
	}
	if o.Mode != nil {
		doc.ProcessingMode = *o.Mode
	}
	if o.Molecule != nil {
		doc.Molecule = *o.Molecule
	}
}
