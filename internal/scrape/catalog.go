package scrape

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/ps-discounts/internal/model"
)

type catalogRow struct {
	ConceptID string `csv:"concept_id"`
	Name      string `csv:"name"`
}

// ReadCatalog decodes a concept_id,name product list. Rows without a
// concept id are skipped; a repeated id keeps its last name.
func ReadCatalog(r io.Reader) ([]model.Product, error) {
	br := bufio.NewReader(r)
	if b, _ := br.Peek(len(utf8BOM)); bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	dec, err := csvutil.NewDecoder(cr)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "scrape: read catalog header")
	}
	if !hasColumn(dec.Header(), "concept_id") {
		return nil, eris.New("scrape: catalog is missing the concept_id column")
	}

	index := make(map[string]int)
	var products []model.Product
	for {
		var row catalogRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, eris.Wrap(err, "scrape: decode catalog row")
		}
		id := strings.TrimSpace(row.ConceptID)
		if id == "" {
			continue
		}
		p := model.Product{ID: id, Name: strings.TrimSpace(row.Name)}
		if i, ok := index[id]; ok {
			products[i] = p
			continue
		}
		index[id] = len(products)
		products = append(products, p)
	}
	return products, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func hasColumn(header []string, name string) bool {
	for _, h := range header {
		if strings.TrimSpace(h) == name {
			return true
		}
	}
	return false
}
