package archstrap

import (
	"fmt"
	"io"
	"os"

	"github.com/arthur-debert/archstrap/pkg/logging"
	"github.com/arthur-debert/archstrap/pkg/style"
)

// ReportError renders err for the operator and points at the log file
func ReportError(w io.Writer, err error) {
	if err == nil {
		return
	}
	format := style.FormatText
	if f, ok := w.(*os.File); ok {
		format = style.DetectFormat(f)
	}
	fmt.Fprintln(w, style.RenderError(err, format))
	fmt.Fprintf(w, MsgSeeLog, logging.LogFilePath())
}
