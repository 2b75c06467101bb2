package report

// Describe returns a sentence for a verdict reason code. Unknown codes are
// returned unchanged.
func Describe(code string) string {
	switch code {
	case "authentic":
		return "Physiological signals are consistent with a live subject"
	case "low_liveness_score":
		return "Liveness score is below the decision threshold"
	case "low_sqi":
		return "Signal quality too low for a confident verdict"
	case "no_clear_heartbeat":
		return "No plausible heart-rate peak in the pulse spectrum"
	case "diffuse_spectrum":
		return "Pulse energy is spread across the spectrum"
	case "broad_spectral_peak":
		return "Heart-rate peak is broad rather than sharp"
	case "low_inter_region_coherence":
		return "Skin regions do not share a common pulse"
	case "no_pulse_transit":
		return "No phase delay between regions as blood would produce"
	case "unstable_hr":
		return "Heart rate drifts implausibly between windows"
	case "abnormal_hrv":
		return "Heart-rate variability is outside physiological range"
	case "no_harmonic_structure":
		return "Pulse waveform lacks harmonic structure"
	case "no_respiratory_modulation":
		return "No breathing modulation of the pulse signal"
	default:
		return code
	}
}
