//go:build js && wasm

package main

import (
	"context"
	"fmt"
	"strconv"
	"syscall/js"

	"github.com/himanishpuri/landmark/pkg/landmark/fingerprint"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorProcessing
	ErrorSpectrogramFailed
	ErrorPeakExtraction
	ErrorHashGeneration
)

// generateFingerprint turns PCM samples into landmark fingerprints in the
// browser, so only hashes are sent to /api/identify/fingerprints.
// Returns: {error: number, data: array | string, sampleRate: number}
func generateFingerprint(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 3 arguments: audioArray, sampleRate, channels")
	}

	audioJS, rateJS, channelsJS := args[0], args[1], args[2]
	if audioJS.Type() != js.TypeObject {
		return makeErrorResponse(ErrorInvalidArgs, "audioArray must be an Array or Float64Array")
	}
	if rateJS.Type() != js.TypeNumber || channelsJS.Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "sampleRate and channels must be numbers")
	}

	sampleRate := rateJS.Int()
	channels := channelsJS.Int()
	if sampleRate <= 0 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Invalid sample rate: %d", sampleRate))
	}
	if channels < 1 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Channels must be at least 1, got: %d", channels))
	}

	length := audioJS.Length()
	if length == 0 {
		return makeErrorResponse(ErrorInvalidArgs, "audioArray is empty")
	}

	samples := make([]float64, length)
	for i := range samples {
		v := audioJS.Index(i)
		if v.Type() != js.TypeNumber {
			return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("audioArray element %d is not a number", i))
		}
		samples[i] = v.Float()
	}
	samples = downmix(samples, channels)

	spec, err := fingerprint.ComputeSpectrogram(samples, sampleRate, fingerprint.DefaultSpectrogramConfig())
	if err != nil {
		return makeErrorResponse(ErrorSpectrogramFailed, fmt.Sprintf("Failed to generate spectrogram: %v", err))
	}

	peaks, err := fingerprint.ExtractPeaks(context.Background(), spec, fingerprint.DefaultPeakConfig())
	if err != nil {
		return makeErrorResponse(ErrorProcessing, fmt.Sprintf("Failed to extract peaks: %v", err))
	}
	if len(peaks) == 0 {
		return makeErrorResponse(ErrorPeakExtraction, "No peaks found in audio (audio may be silent or too short)")
	}

	fps := fingerprint.Collect(peaks, fingerprint.DefaultGeneratorConfig())
	if len(fps) == 0 {
		return makeErrorResponse(ErrorHashGeneration, "No fingerprint hashes generated")
	}

	// hashes go out as decimal strings; a JS number only holds 53 bits
	out := js.Global().Get("Array").New(len(fps))
	for i, fp := range fps {
		obj := js.Global().Get("Object").New()
		obj.Set("hash", strconv.FormatUint(uint64(fp.Hash), 10))
		obj.Set("anchor", fp.Anchor)
		out.SetIndex(i, obj)
	}

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", out)
	result.Set("sampleRate", sampleRate)
	return result
}

// downmix averages interleaved channels into one.
func downmix(interleaved []float64, channels int) []float64 {
	if channels == 1 {
		return interleaved
	}
	mono := make([]float64, len(interleaved)/channels)
	for i := range mono {
		var sum float64
		for c := range channels {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")
	logf := func(method, msg string) {
		if !console.IsUndefined() {
			console.Call(method, msg)
		}
	}

	logf("log", "🔧 Landmark WASM module initializing...")
	js.Global().Set("generateFingerprint", js.FuncOf(generateFingerprint))
	logf("log", "📝 generateFingerprint function registered")

	window := js.Global().Get("window")
	if window.IsUndefined() {
		logf("error", "❌ window object is undefined!")
	} else {
		event := js.Global().Get("CustomEvent").New("wasmReady", js.Global().Get("Object").New())
		window.Call("dispatchEvent", event)
		logf("log", "✅ wasmReady event dispatched")
	}

	select {}
}
