package job

// Summary aggregates counters over a whole run.
type Summary struct {
	TotalPages     int    `json:"total_pages"`
	TotalSize      uint64 `json:"total_size"`
	NonzeroPages   int    `json:"nonzero_pages"`
	NonzeroSize    uint64 `json:"nonzero_size"`
	ProcessedPages int    `json:"processed_pages"`
	ProcessedSize  uint64 `json:"processed_size"`

	PassedPages int `json:"passed_pages"`
	FailedPages int `json:"failed_pages"`

	// FinalizedSize and CompressedBits cover verified pages only.
	FinalizedSize  uint64 `json:"finalized_size"`
	CompressedBits uint64 `json:"compressed_bits"`

	EncodeCycles uint64 `json:"encode_cycles"`
	EncodeStalls uint64 `json:"encode_stalls"`
	DecodeCycles uint64 `json:"decode_cycles"`
	DecodeStalls uint64 `json:"decode_stalls"`
}

// Ratio returns compressed size over raw size for verified pages.
func (s Summary) Ratio() float64 {
	if s.FinalizedSize == 0 {
		return 0
	}
	return float64(s.CompressedBits) / float64(8*s.FinalizedSize)
}
