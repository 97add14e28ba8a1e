package orders

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
)

// DecodeJSONArray лениво читает JSON-массив заказов: следующий элемент разбирается
// только после того, как потребитель обработал предыдущий.
// Ошибка разбора выдаётся последним элементом и оборачивает domain.ErrMalformedInput.
func DecodeJSONArray(r io.Reader) iter.Seq2[domain.Order, error] {
	return func(yield func(domain.Order, error) bool) {
		dec := json.NewDecoder(r)

		tok, err := dec.Token()
		if err != nil {
			yield(domain.Order{}, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err))
			return
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			yield(domain.Order{}, fmt.Errorf("%w: expected JSON array", domain.ErrMalformedInput))
			return
		}

		for dec.More() {
			var order domain.Order
			if err := dec.Decode(&order); err != nil {
				yield(domain.Order{}, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err))
				return
			}
			if !yield(order, nil) {
				return
			}
		}

		if _, err := dec.Token(); err != nil {
			yield(domain.Order{}, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err))
		}
	}
}
