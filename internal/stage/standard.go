package stage

import (
	"io"
	"path/filepath"
)

// Stage names in execution order.
const (
	NamePrepDataXML    = "prep_data_xml"
	NamePrepIgramStack = "prep_igram_stack"
	NamePrepSBASXML    = "prep_sbas_xml"
	NameProcessStack   = "process_stack"
)

// Well-known working-directory artifacts.
const (
	IfgList        = "ifg.list"
	ExampleRSC     = "example.rsc"
	PrepDataScript = "prepdataxml.py"
	PrepSBASScript = "prepsbasxml.py"
	UserFn         = "userfn.py"
	DataXML        = "data.xml"
	SBASXML        = "sbas.xml"
	StackDir       = "Stack"
	FigsDir        = "Figs"
	IgramFigsDir   = "Figs/Igrams"
	RawStackFile   = "Stack/RAW-STACK.h5"
	ProcStackFile  = "Stack/PROC-STACK.h5"
)

// Commands names the executables behind the standard sequence.
type Commands struct {
	Python       string
	PrepStack    string
	ProcessStack string
	Output       io.Writer
}

// Standard returns the four processing stages in order:
// data descriptor, raw stack, correction descriptor, processed stack.
func Standard(c Commands) []Stage {
	return []Stage{
		&CommandStage{
			StageName: NamePrepDataXML,
			Command:   c.Python,
			Args:      []string{PrepDataScript},
			In:        []string{PrepDataScript, IfgList, ExampleRSC, UserFn},
			Out:       []string{DataXML},
			Output:    c.Output,
		},
		&CommandStage{
			StageName: NamePrepIgramStack,
			Command:   c.PrepStack,
			In:        []string{DataXML},
			Out:       []string{filepath.FromSlash(RawStackFile)},
			Output:    c.Output,
		},
		&CommandStage{
			StageName: NamePrepSBASXML,
			Command:   c.Python,
			Args:      []string{PrepSBASScript},
			In:        []string{PrepSBASScript},
			Out:       []string{SBASXML},
			Output:    c.Output,
		},
		&CommandStage{
			StageName: NameProcessStack,
			Command:   c.ProcessStack,
			In:        []string{SBASXML, filepath.FromSlash(RawStackFile)},
			Out:       []string{filepath.FromSlash(ProcStackFile), filepath.FromSlash(IgramFigsDir)},
			Output:    c.Output,
		},
	}
}
