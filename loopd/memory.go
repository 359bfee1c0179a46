package loopd

// ResidentMemory returns the resident memory of the current process in bytes.
func ResidentMemory() (uint64, error) {
	return residentMemory()
}

// megabytes converts bytes to megabytes.
func megabytes(b uint64) float64 {
	return float64(b) / 1024 / 1024
}
