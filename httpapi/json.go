package httpapi

import (
	"encoding/json"
	"net/http"

	"turretcore/model"
	"turretcore/turreterr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if turreterr.IsBadRequest(err) || turreterr.IsLocked(err) {
		status = http.StatusBadRequest
	}
	writeMessage(w, status, err.Error())
}

// eventJSON is the wire shape for one Event Journal record.
type eventJSON struct {
	Time        int64  `json:"time"`
	Event       int    `json:"event"`
	ClassName   string `json:"className"`
	Description string `json:"description"`
}

func toEventJSON(recs []model.EventRecord) []eventJSON {
	out := make([]eventJSON, 0, len(recs))
	for _, r := range recs {
		out = append(out, eventJSON{
			Time:        r.Time.Unix(),
			Event:       int(r.Kind),
			ClassName:   r.Class,
			Description: r.Description,
		})
	}
	return out
}
