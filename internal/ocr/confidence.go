package ocr

import (
	"regexp"
)

var (
	reLabels  = regexp.MustCompile(`(?i)\b(boarding|embarque|gate|puerta|seat|asiento|flight|vuelo|passenger|pasajero)\b`)
	reIATA    = regexp.MustCompile(`\b[A-Z]{3}\b`)
	reFlightN = regexp.MustCompile(`\b[A-Z0-9]{2}\s?\d{2,4}\b`)
	reDateIsh = regexp.MustCompile(`(?i)\b\d{1,2}[/\-.\s]?(\d{1,2}|[a-z]{3})\b`)
)

// heuristicConfidence scores how much the text looks like a boarding pass,
// in 0..1.
func heuristicConfidence(txt string) float32 {
	score := float32(0.2) // base
	if reLabels.MatchString(txt) {
		score += 0.2
	}
	if len(reIATA.FindAllString(txt, 3)) >= 2 {
		score += 0.2
	}
	if reFlightN.MatchString(txt) {
		score += 0.15
	}
	if reDateIsh.MatchString(txt) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// blend weights the engine's own confidence higher when it has one.
func blend(engineConf, heur float32) float32 {
	conf := heur
	if engineConf > 0 {
		conf = 0.7*engineConf + 0.3*heur
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
