package wakeword

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// ── openWakeWord pipeline geometry ───────────────────────────────

const (
	sampleRate   = 16000
	chunkSamples = 1280 // 80 ms @ 16 kHz
	melWindow    = 76   // mel frames per embedding window
	melStep      = 8    // mel frames between embedding windows
	melBins      = 32
	melFrames    = 5 // mel frames produced per 1280-sample chunk
	embeddingDim = 96
	embedFrames  = 16 // embedding frames per score

	// Only the newest embedding slots carry real data at scoring time;
	// older slots are zeroed. Silence embeddings accumulated before the
	// phrase would otherwise drag the score down.
	liveSlots = 5

	// Trailing window over recent scores. The peak can land a frame
	// early or late, so the trigger looks at the window max.
	scoreWindow = 5
)

// pipeline runs the three-stage openWakeWord ONNX chain:
// melspectrogram, embedding, wake phrase classifier.
type pipeline struct {
	melIn     *ort.Tensor[float32]
	melOut    *ort.Tensor[float32]
	melSess   *ort.AdvancedSession
	embedIn   *ort.Tensor[float32]
	embedOut  *ort.Tensor[float32]
	embedSess *ort.AdvancedSession
	wakeIn    *ort.Tensor[float32]
	wakeOut   *ort.Tensor[float32]
	wakeSess  *ort.AdvancedSession

	melBuf   []float32
	embedBuf []float32
	scores   []float32
	scoreIdx int
}

// newPipeline loads the three models. Call close when done; the caller
// owns ONNX environment setup and teardown.
func newPipeline(melModel, embedModel, wakeModel string) (*pipeline, error) {
	p := &pipeline{
		melBuf:   make([]float32, 0, 300*melBins),
		embedBuf: make([]float32, embedFrames*embeddingDim),
		scores:   make([]float32, scoreWindow),
	}

	var err error
	if p.melIn, err = ort.NewEmptyTensor[float32](ort.NewShape(1, chunkSamples)); err != nil {
		return nil, err
	}
	if p.melOut, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1, melFrames, melBins)); err != nil {
		p.close()
		return nil, err
	}
	if p.melSess, err = session(melModel, p.melIn, p.melOut); err != nil {
		p.close()
		return nil, err
	}

	if p.embedIn, err = ort.NewEmptyTensor[float32](ort.NewShape(1, melWindow, melBins, 1)); err != nil {
		p.close()
		return nil, err
	}
	if p.embedOut, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1, 1, embeddingDim)); err != nil {
		p.close()
		return nil, err
	}
	if p.embedSess, err = session(embedModel, p.embedIn, p.embedOut); err != nil {
		p.close()
		return nil, err
	}

	if p.wakeIn, err = ort.NewEmptyTensor[float32](ort.NewShape(1, embedFrames, embeddingDim)); err != nil {
		p.close()
		return nil, err
	}
	if p.wakeOut, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1)); err != nil {
		p.close()
		return nil, err
	}
	if p.wakeSess, err = session(wakeModel, p.wakeIn, p.wakeOut); err != nil {
		p.close()
		return nil, err
	}

	return p, nil
}

func session(model string, in, out *ort.Tensor[float32]) (*ort.AdvancedSession, error) {
	inInfo, outInfo, err := ort.GetInputOutputInfo(model)
	if err != nil {
		return nil, fmt.Errorf("model info %s: %w", model, err)
	}
	return ort.NewAdvancedSession(model,
		[]string{inInfo[0].Name}, []string{outInfo[0].Name},
		[]ort.Value{in}, []ort.Value{out}, nil)
}

// feed pushes one 1280-sample chunk through the chain. It returns the
// max score over the trailing window and whether a new score was
// produced at all (embedding windows fill slower than audio chunks).
func (p *pipeline) feed(chunk []int16) (float32, bool, error) {
	in := p.melIn.GetData()
	for i, v := range chunk {
		in[i] = float32(v)
	}
	if err := p.melSess.Run(); err != nil {
		return 0, false, fmt.Errorf("melspectrogram: %w", err)
	}

	mel := p.melOut.GetData()
	for f := 0; f < melFrames; f++ {
		for b := 0; b < melBins; b++ {
			p.melBuf = append(p.melBuf, mel[f*melBins+b]/10.0+2.0)
		}
	}

	scored := false
	for len(p.melBuf)/melBins >= melWindow {
		eIn := p.embedIn.GetData()
		copy(eIn, p.melBuf[:melWindow*melBins])
		if err := p.embedSess.Run(); err != nil {
			return 0, false, fmt.Errorf("embedding: %w", err)
		}

		// Slide the embedding buffer left and append the new frame.
		copy(p.embedBuf, p.embedBuf[embeddingDim:])
		copy(p.embedBuf[(embedFrames-1)*embeddingDim:], p.embedOut.GetData()[:embeddingDim])

		n := copy(p.melBuf, p.melBuf[melStep*melBins:])
		p.melBuf = p.melBuf[:n]

		score, err := p.score()
		if err != nil {
			return 0, false, err
		}
		p.scores[p.scoreIdx%scoreWindow] = score
		p.scoreIdx++
		scored = true
	}

	// Keep at most one window of mel history.
	if frames := len(p.melBuf) / melBins; frames > melWindow {
		n := copy(p.melBuf, p.melBuf[(frames-melWindow)*melBins:])
		p.melBuf = p.melBuf[:n]
	}

	if !scored {
		return 0, false, nil
	}
	var max float32
	for _, s := range p.scores {
		if s > max {
			max = s
		}
	}
	return max, true, nil
}

// score runs the classifier over a zero-padded copy of the embedding
// buffer where only the newest liveSlots frames are real.
func (p *pipeline) score() (float32, error) {
	in := p.wakeIn.GetData()
	pad := (embedFrames - liveSlots) * embeddingDim
	for i := 0; i < pad; i++ {
		in[i] = 0
	}
	copy(in[pad:], p.embedBuf[pad:])
	if err := p.wakeSess.Run(); err != nil {
		return 0, fmt.Errorf("wake classifier: %w", err)
	}
	return p.wakeOut.GetData()[0], nil
}

// reset flushes all rolling state, used after a pause so stale frames
// do not pollute the next score.
func (p *pipeline) reset() {
	p.melBuf = p.melBuf[:0]
	for i := range p.embedBuf {
		p.embedBuf[i] = 0
	}
	for i := range p.scores {
		p.scores[i] = 0
	}
	p.scoreIdx = 0
}

// clearScores empties the trailing window, preventing a re-trigger on
// the same peak.
func (p *pipeline) clearScores() {
	for i := range p.scores {
		p.scores[i] = 0
	}
}

func (p *pipeline) close() {
	for _, s := range []*ort.AdvancedSession{p.melSess, p.embedSess, p.wakeSess} {
		if s != nil {
			s.Destroy()
		}
	}
	for _, t := range []*ort.Tensor[float32]{p.melIn, p.melOut, p.embedIn, p.embedOut, p.wakeIn, p.wakeOut} {
		if t != nil {
			t.Destroy()
		}
	}
}
