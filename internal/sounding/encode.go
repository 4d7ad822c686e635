package sounding

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"
)

// Encode writes profiles in the text format read by Parse. Every profile
// carries an STIM line taken from its lead time.
func Encode(w io.Writer, profiles []Profile) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "SNPARM = %s\n\n", strings.Join(DefaultColumns, ";"))
	for _, p := range profiles {
		fmt.Fprintf(bw, "STID = %s STNM = %d TIME = %s\n", p.Station, p.StationNum, p.Valid.UTC().Format(TimeLayout))
		fmt.Fprintf(bw, "SELV = %.1f\n", p.Elevation)
		if p.HasLead {
			fmt.Fprintf(bw, "STIM = %d\n", int(p.Lead.Hours()))
		}
		fmt.Fprintf(bw, "\n%s\n", strings.Join(DefaultColumns, " "))
		for _, l := range p.Levels {
			fmt.Fprintf(bw, "%s %s %s %s %s %s\n",
				num(l.Pressure), num(l.Temperature), num(l.DewPoint),
				num(l.Height), num(l.WindSpeed), num(l.WindDirection))
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "-9999.00"
	}
	return fmt.Sprintf("%.2f", v)
}
