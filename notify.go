package vagkoll

import (
	"fmt"
	"io"
	"os"
)

// BellNotifier rings the terminal bell when a live event is merged. Whether
// anything audible happens depends on the terminal; that's fine, the cue is
// best-effort by contract.
type BellNotifier struct {
	Out io.Writer
}

func NewBellNotifier() *BellNotifier {
	return &BellNotifier{Out: os.Stdout}
}

func (n *BellNotifier) Cue(e Event) {
	fmt.Fprint(n.Out, "\a")
}
