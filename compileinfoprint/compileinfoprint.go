// compileinfoprint is imported by each binary for the side effect of printing
// its build provenance to os.Stderr before any log output.
package compileinfoprint

import "github.com/carbocation/exprqc/compileinfo"

func init() {
	compileinfo.PrintToStdErr()
}
