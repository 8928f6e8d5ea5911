package ai

import (
	"math"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
)

// ComputeTalkTime returns each speaker's share of total speaking time as a percentage rounded to 2 decimals.
// Speakers with no speaking time are omitted; an empty or zero-length transcript yields an empty map.
func ComputeTalkTime(segments []*entities.Transcript) map[string]float64 {
	perSpeaker := make(map[string]float64)
	total := 0.0
	for _, seg := range segments {
		d := seg.Duration()
		if d <= 0 {
			continue
		}
		speaker := seg.SpeakerName
		if speaker == "" {
			speaker = entities.UnknownSpeaker
		}
		perSpeaker[speaker] += d
		total += d
	}

	out := make(map[string]float64, len(perSpeaker))
	if total <= 0 {
		return out
	}
	for speaker, d := range perSpeaker {
		out[speaker] = math.Round(d/total*100*100) / 100
	}
	return out
}
