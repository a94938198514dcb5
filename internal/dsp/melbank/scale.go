package melbank

import "math"

// slaneyLogStep is the natural-log frequency step per mel above the
// 1 kHz break point of the Slaney mel scale.
const slaneyLogStep = 0.06875178

func logStep(ratio float64) float64 {
	return math.Log(ratio) / slaneyLogStep
}

func expStep(melsAboveBreak float64) float64 {
	return math.Exp(melsAboveBreak * slaneyLogStep)
}
