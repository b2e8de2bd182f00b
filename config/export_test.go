package config

// DecodeForTest exposes decode.
var DecodeForTest = decode
