package curves

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var ErrChannelLength = errors.New("channels must have the same non-zero length")

// WriteCube renders the curves as a 1D .cube LUT, one "r g b" row per sample.
func (c Curves) WriteCube(w io.Writer, title string) error {
	size := len(c.Red)
	if size == 0 || len(c.Green) != size || len(c.Blue) != size {
		return fmt.Errorf("%w: red=%d green=%d blue=%d", ErrChannelLength, len(c.Red), len(c.Green), len(c.Blue))
	}

	bw := bufio.NewWriter(w)
	title = strings.ReplaceAll(strings.TrimSpace(title), `"`, "'")
	if title != "" {
		fmt.Fprintf(bw, "TITLE %q\n", title)
	}
	fmt.Fprintf(bw, "LUT_1D_SIZE %d\n", size)
	bw.WriteString("DOMAIN_MIN 0.0 0.0 0.0\n")
	bw.WriteString("DOMAIN_MAX 1.0 1.0 1.0\n")
	for i := 0; i < size; i++ {
		bw.WriteString(formatSample(c.Red[i]))
		bw.WriteByte(' ')
		bw.WriteString(formatSample(c.Green[i]))
		bw.WriteByte(' ')
		bw.WriteString(formatSample(c.Blue[i]))
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write cube lut: %w", err)
	}
	return nil
}

func formatSample(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', 6, 32)
}
