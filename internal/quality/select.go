package quality

import "github.com/basswave/chartgen/internal/model"

// Candidate pairs a chart with its quality score for the
// conservative-vs-enriched choice.
type Candidate struct {
	Notes []model.Note
	Score float64
}

// SelectBest implements the enriched-vs-conservative choice. Enriched is
// preferred when its score is within 0.045 of conservative's,
// or when the track is energetic and enriched retains at least 82% of
// conservative's note count with a score no worse than -0.12. When both
// conditions hold simultaneously this implementation breaks the tie toward
// enriched (see DESIGN.md open-question decision 2): the quality floor and
// rescue path downstream exist to correct an enriched chart that
// overshoots, so erring enriched is lower risk than under-filling.
func SelectBest(conservative, enriched Candidate, energetic bool) Candidate {
	scoreClose := enriched.Score >= conservative.Score-0.045
	countRatioOK := len(conservative.Notes) > 0 &&
		float64(len(enriched.Notes)) >= 0.82*float64(len(conservative.Notes)) &&
		enriched.Score >= -0.12
	if scoreClose || (energetic && countRatioOK) {
		return enriched
	}
	return conservative
}
