package input

import "sync"

// Recorder is a fake Keyboard/Mouse that records synthesized events and lets
// tests script key state.
type Recorder struct {
	mu     sync.Mutex
	held   map[uint8]bool
	down   map[uint8]bool
	Events []string
}

func NewRecorder() *Recorder {
	return &Recorder{held: make(map[uint8]bool), down: make(map[uint8]bool)}
}

// Hold marks a physical key as held for IsDown.
func (r *Recorder) Hold(vk uint8, held bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.held[vk] = held
}

func (r *Recorder) KeyDown(vk uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.down[vk] = true
	r.Events = append(r.Events, "keydown")
}

func (r *Recorder) KeyUp(vk uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.down[vk] = false
	r.Events = append(r.Events, "keyup")
}

func (r *Recorder) IsDown(vk uint8) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held[vk]
}

func (r *Recorder) LeftDown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, "leftdown")
}

func (r *Recorder) LeftUp() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, "leftup")
}

// Pressed reports whether a synthesized key-down is currently unmatched.
func (r *Recorder) Pressed(vk uint8) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.down[vk]
}
