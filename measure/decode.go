package measure

// DecodeRSRP converts a reported RSRP range value into dBm.
func DecodeRSRP(encoded uint8) float64 {
	return -140.0 + float64(encoded)
}

// DecodeRSRQ converts a reported RSRQ range value into dB.
func DecodeRSRQ(encoded uint8) float64 {
	return -19.5 + float64(encoded)/2.0
}
