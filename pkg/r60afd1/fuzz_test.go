// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package r60afd1

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

var fuzzControls = []uint8{CtrlHeartbeat, CtrlProductInfo, CtrlOperation, CtrlWorkStatus, CtrlInstallation, CtrlHumanPresence, CtrlFallDetection}

// randomFrame builds a well-formed frame with a random address and payload
func randomFrame(rng *rand.Rand) []byte {
	control := fuzzControls[rng.Intn(len(fuzzControls))]
	command := uint8(rng.Intn(256))
	payload := make([]byte, rng.Intn(16))
	rng.Read(payload)
	return EncodeFrame(control, command, payload)
}

// randomGarbage returns bytes that can never begin a start marker
func randomGarbage(rng *rand.Rand, n int) []byte {
	garbage := make([]byte, n)
	for i := range garbage {
		b := uint8(rng.Intn(256))
		for b == HeaderByte1 {
			b = uint8(rng.Intn(256))
		}
		garbage[i] = b
	}
	return garbage
}

// writeChunked feeds data in random-sized pieces
func writeChunked(rng *rand.Rand, s *Synchronizer, data []byte) []*Frame {
	var frames []*Frame
	for len(data) > 0 {
		n := 1 + rng.Intn(len(data))
		frames = append(frames, s.Feed(data[:n], nil)...)
		data = data[n:]
	}
	return frames
}

// ============================================================
// Synchronizer Fuzz Tests
// ============================================================

func TestFuzzSynchronizer_RandomBytes(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		data := make([]byte, rng.Intn(256))
		rng.Read(data)

		s := NewSynchronizer(WithStaleLimit(1))
		state := NewState("")
		d := NewDispatcher(state, nil)

		frames := writeChunked(rng, s, data)
		for s.Buffered() > 0 {
			s.Tick()
			frames = append(frames, s.Feed(nil, nil)...)
		}

		for _, f := range frames {
			if !bytes.Contains(data, f.Bytes()) {
				t.Fatalf("round %d: delivered frame % X not present in input", i, f.Bytes())
			}
			ValidateFrame(f)
			FormatFrame(f)
			d.Dispatch(f)
		}
	}
}

func TestFuzzSynchronizer_FramesAmidGarbage(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		var stream []byte
		var expected [][]byte
		for n := rng.Intn(8) + 1; n > 0; n-- {
			stream = append(stream, randomGarbage(rng, rng.Intn(6))...)
			frame := randomFrame(rng)
			expected = append(expected, frame)
			stream = append(stream, frame...)
		}

		frames := writeChunked(rng, NewSynchronizer(), stream)
		if len(frames) != len(expected) {
			t.Fatalf("round %d: expected %d frames, got %d\nstream: % X", i, len(expected), len(frames), stream)
		}
		for j, f := range frames {
			if !bytes.Equal(f.Bytes(), expected[j]) {
				t.Fatalf("round %d frame %d: expected % X, got % X", i, j, expected[j], f.Bytes())
			}
		}
	}
}

func TestFuzzSynchronizer_CorruptedPayload(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		payload := make([]byte, 1+rng.Intn(16))
		rng.Read(payload)
		bad := EncodeFrame(CtrlHumanPresence, CmdTrajectory, payload)
		pos := HeaderSize + rng.Intn(len(payload)+1) // any payload byte or the checksum
		bad[pos] ^= uint8(1 + rng.Intn(255))

		good := randomFrame(rng)
		frames := NewSynchronizer().Feed(append(bad, good...), nil)

		if len(frames) != 1 || !bytes.Equal(frames[0].Bytes(), good) {
			t.Fatalf("round %d: corruption at %d not rejected cleanly\nbad:  % X\ngot %d frames", i, pos, bad, len(frames))
		}
	}
}

// ============================================================
// Dispatcher Fuzz Tests
// ============================================================

func TestFuzzDispatcher_TableShapes(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	keys := make([]Key, 0, len(decodeTable))
	for k := range decodeTable {
		keys = append(keys, k)
	}

	state := NewState("")
	d := NewDispatcher(state, nil)
	for i := 0; i < rounds; i++ {
		k := keys[rng.Intn(len(keys))]
		length := k.Length
		if length == AnyLength {
			length = 1 + rng.Intn(64)
		}
		payload := make([]byte, length)
		rng.Read(payload)

		if _, err := d.Dispatch(NewFrame(k.Control, k.Command, payload)); err != nil {
			t.Fatalf("round %d: table key %+v rejected: %v", i, k, err)
		}
		if len(state.Product().Model) > MaxProductStringLen {
			t.Fatalf("round %d: product string exceeds capacity", i)
		}
	}
}

// ============================================================
// Reconciler Fuzz Tests
// ============================================================

func TestFuzzReconciler_RandomDeltas(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	keys := SettingKeys()

	for i := 0; i < rounds; i++ {
		delta := map[string]any{}
		for _, k := range keys {
			if rng.Intn(2) == 0 {
				continue
			}
			switch k {
			case "stay_still_switch", "fall_detection_switch":
				delta[k] = rng.Intn(2) == 0
			default:
				delta[k] = rng.Int63n(20000) - 10000
			}
		}
		data, _ := json.Marshal(delta)

		state := NewState("")
		sender := &recordingSender{}
		rec := NewReconciler(state, sender, WithCommandSpacing(0))
		result, err := rec.ApplyJSON(context.Background(), data)
		if err != nil {
			t.Fatalf("round %d: %v", i, err)
		}

		s := state.Settings()
		if s != s.Clamped() {
			t.Fatalf("round %d: state holds out-of-range settings %+v for %s", i, s, data)
		}
		if len(result.Ignored) != 0 {
			t.Fatalf("round %d: valid keys ignored: %v", i, result.Ignored)
		}
	}
}
