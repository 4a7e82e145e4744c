package report

import (
	"errors"
	"net/http"

	"github.com/banshee-data/pulse.report/internal/db"
	"github.com/banshee-data/pulse.report/internal/pulse"
)

// FromStore rebuilds report data for a stored session.
func FromStore(store *db.DB, sessionID string) (Data, error) {
	sess, err := store.GetSession(sessionID)
	if err != nil {
		return Data{}, err
	}
	values, err := store.ListFeatureValues(sessionID)
	if err != nil {
		return Data{}, err
	}
	hr, err := store.ListHeartRate(sessionID)
	if err != nil {
		return Data{}, err
	}
	reasons, err := store.ReasonCounts(sessionID)
	if err != nil {
		return Data{}, err
	}

	d := Data{Subject: sess.Subject, SessionID: sess.ID, HeartRate: hr, Reasons: reasons}
	d.FeatureNames, d.Exact, d.Average = pivot(values)
	return d, nil
}

// pivot turns beat x feature rows, ordered by beat then feature, back into
// one FeatureRow per beat.
func pivot(values []db.FeatureValue) (names []string, exact, average []pulse.FeatureRow) {
	col := make(map[string]int)
	for _, v := range values {
		if _, ok := col[v.Feature]; !ok {
			col[v.Feature] = len(names)
			names = append(names, v.Feature)
		}
	}

	beat := -1
	for _, v := range values {
		if v.BeatIndex != beat || len(exact) == 0 {
			beat = v.BeatIndex
			exact = append(exact, pulse.FeatureRow{Time: v.BeatTime, Values: nanRow(len(names))})
			average = append(average, pulse.FeatureRow{Time: v.BeatTime, Values: nanRow(len(names))})
		}
		exact[len(exact)-1].Values[col[v.Feature]] = v.Exact
		average[len(average)-1].Values[col[v.Feature]] = v.Averaged
	}
	return names, exact, average
}

func nanRow(n int) []float64 {
	row := make([]float64, n)
	for i := range row {
		row[i] = nan
	}
	return row
}

// Handler serves GET /report?session=<id> from the store.
func Handler(store *db.DB, assetsHost string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Query().Get("session")
		if id == "" {
			http.Error(w, "missing session parameter", http.StatusBadRequest)
			return
		}
		d, err := FromStore(store, id)
		if errors.Is(err, db.ErrSessionNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		d.AssetsHost = assetsHost
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := Render(w, d); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
