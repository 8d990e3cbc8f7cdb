package www

import "net/http"

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.Health(r.Context()))
}
