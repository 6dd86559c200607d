package sysfs

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"sync"
)

// fakeFS is an in-memory stand-in for the sysfs tree used by gpio_test.go
// and pwm_test.go. It lets tests exercise the export/open dance without
// touching the real filesystem, the way the package's production code
// only ever talks to the filesystem through fileIOOpen.
type fakeFS struct {
	mu      sync.Mutex
	files   map[string]*fakeFile
	exports []string // records every write to an "export" file
}

func newFakeFS() *fakeFS {
	return &fakeFS{files: map[string]*fakeFile{}}
}

// install swaps fileIOOpen for the duration of the test.
func (f *fakeFS) install(t interface{ Cleanup(func()) }) {
	prev := fileIOOpen
	fileIOOpen = f.open
	t.Cleanup(func() { fileIOOpen = prev })
}

// put seeds or overwrites path's content in place, so file handles
// already opened against path observe the new content on their next
// seek-then-read, the same way a real sysfs attribute file behaves.
func (f *fakeFS) put(path, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ff, ok := f.files[path]; ok {
		ff.mu.Lock()
		ff.content = []byte(content)
		ff.mu.Unlock()
		return
	}
	f.files[path] = &fakeFile{content: []byte(content)}
}

func (f *fakeFS) get(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ff, ok := f.files[path]
	if !ok {
		return ""
	}
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return string(ff.content)
}

func (f *fakeFS) open(path string, flag int) (fileIO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if strings.HasSuffix(path, "export") && !strings.HasSuffix(path, "unexport") {
		f.exports = append(f.exports, path)
	}

	ff, ok := f.files[path]
	if !ok {
		if flag&os.O_WRONLY != 0 || flag&os.O_RDWR != 0 {
			// Permit writes to files not pre-seeded (export/unexport/enable
			// sinks) by creating them lazily.
			ff = &fakeFile{}
			f.files[path] = ff
			return &fakeFileHandle{f: ff}, nil
		}
		return nil, os.ErrNotExist
	}
	return &fakeFileHandle{f: ff}, nil
}

type fakeFile struct {
	mu      sync.Mutex
	content []byte
}

type fakeFileHandle struct {
	f   *fakeFile
	pos int
}

func (h *fakeFileHandle) Read(b []byte) (int, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	if h.pos >= len(h.f.content) {
		return 0, errors.New("EOF")
	}
	n := copy(b, h.f.content[h.pos:])
	h.pos += n
	return n, nil
}

func (h *fakeFileHandle) Write(b []byte) (int, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	buf := bytes.NewBuffer(nil)
	buf.Write(h.f.content[:min(h.pos, len(h.f.content))])
	buf.Write(b)
	h.f.content = buf.Bytes()
	h.pos += len(b)
	return len(b), nil
}

func (h *fakeFileHandle) Seek(offset int64, whence int) (int64, error) {
	if whence == 0 {
		h.pos = int(offset)
	}
	return int64(h.pos), nil
}

func (h *fakeFileHandle) Close() error { return nil }

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
