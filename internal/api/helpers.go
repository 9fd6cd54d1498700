package api

import "fabrika/internal/store"

// flatten — «плоский» вид документа: сгенерированный id + поля payload.
// При совпадении ключа сгенерированный id всегда побеждает.
func flatten(d store.Document) map[string]any {
	out := make(map[string]any, len(d.Payload)+1)
	for k, v := range d.Payload {
		out[k] = v
	}
	out["id"] = d.ID
	return out
}
