// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageCounterFunc adapts a function to PageCounter.
type PageCounterFunc func(path string) (int, error)

// CountPages calls f.
func (f PageCounterFunc) CountPages(path string) (int, error) { return f(path) }

// pdfcpuPages counts pages with pdfcpu, which validates the whole document.
func pdfcpuPages(path string) (int, error) {
	return api.PageCountFile(path)
}

// ledongthucPages reads only the page tree and tolerates files pdfcpu rejects.
func ledongthucPages(path string) (int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return r.NumPage(), nil
}

// chainCounter tries each counter in order and returns the first positive count.
type chainCounter []PageCounter

func (c chainCounter) CountPages(path string) (int, error) {
	var errs []error
	for _, pc := range c {
		n, err := pc.CountPages(path)
		if err == nil && n > 0 {
			return n, nil
		}
		if err == nil {
			err = fmt.Errorf("no pages in %s", path)
		}
		errs = append(errs, err)
	}
	return 0, errors.Join(errs...)
}

// DefaultPageCounter counts with pdfcpu and falls back to the lenient reader.
func DefaultPageCounter() PageCounter {
	return chainCounter{PageCounterFunc(pdfcpuPages), PageCounterFunc(ledongthucPages)}
}
