package bparlib

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// WriteSummary writes the current model parameters to the parameter
// logger.  The optional state labels are used if provided.
func (m *Model) WriteSummary(labels []string, title string) {

	m.parlogger.Printf("%s", title)
	m.parlogger.Printf("\n")

	m.parlogger.Printf("Initial state distribution:\n")
	m.writeMatrix(m.Init, 1, m.Kz, labels, nil)
	m.parlogger.Printf("\n")

	m.parlogger.Printf("Transition matrix:\n")
	m.writeMatrix(m.Trans, m.Kz, m.Kz, labels, labels)
	m.parlogger.Printf("\n")

	if m.Ks > 1 {
		m.parlogger.Printf("Switch distributions:\n")
		m.writeMatrix(m.Switch, m.Kz, m.Ks, labels, nil)
		m.parlogger.Printf("\n")
	}

	for k := 0; k < m.Kz; k++ {
		for s := 0; s < m.Ks; s++ {
			th := &m.Theta[k][s]
			m.parlogger.Printf("Behavior (%d,%d) residual mean:\n", k, s)
			if th.Mu != nil {
				m.writeMatrix(snapVec(th.Mu), 1, m.Dim, nil, nil)
			} else {
				m.parlogger.Printf("  (zero)\n")
			}
			m.parlogger.Printf("Behavior (%d,%d) noise covariance:\n", k, s)
			m.writeMatrix(snapSym(th.Sigma), m.Dim, m.Dim, nil, nil)
			m.parlogger.Printf("\n")
		}
	}
}

// writeMatrix writes a matrix in text format to the parameter logger.
func (m *Model) writeMatrix(x []float64, nrow, ncol int, rowlabels, collabels []string) {

	var buf bytes.Buffer

	if rowlabels != nil && nrow != len(rowlabels) {
		msg := "len(rowlabels) != nrow\n"
		_, _ = io.WriteString(os.Stderr, msg)
	}

	if collabels != nil {
		if ncol != len(collabels) {
			msg := "len(collabels) != ncol\n"
			_, _ = io.WriteString(os.Stderr, msg)
		}
		if rowlabels != nil {
			_, _ = io.WriteString(&buf, fmt.Sprintf("%20s", ""))
		}
		for _, c := range collabels {
			_, _ = io.WriteString(&buf, fmt.Sprintf("%20s", c))
		}
		m.parlogger.Printf("%s", buf.String())
	}

	for i := 0; i < nrow; i++ {

		buf.Reset()

		if rowlabels != nil {
			_, _ = io.WriteString(&buf, fmt.Sprintf("%-20s", rowlabels[i]))
		}
		for j := 0; j < ncol; j++ {
			_, _ = io.WriteString(&buf, fmt.Sprintf("%20.4f", x[i*ncol+j]))
		}

		m.parlogger.Printf("%s", buf.String())
	}
}

// CompareStates returns the number of positions where the state sequences
// x and y disagree, and the total number of positions compared.  Panics
// if the lengths differ.
func CompareStates(x, y []int) (int, int) {

	if len(x) != len(y) {
		panic("Lengths are not equal")
	}

	var e int
	for t := range x {
		if x[t] != y[t] {
			e++
		}
	}

	return e, len(x)
}
