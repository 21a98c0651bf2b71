// Package session caches generated subtitles per browser session and runs the
// upload-to-subtitle flow around a pluggable transcriber.
package session

import (
	"errors"
	"sync"
)

var ErrNoDocument = errors.New("no subtitle document cached")

// Document is a generated subtitle file.
type Document struct {
	FileName string
	Content  string
	Segments int
}

// Cache remembers the document generated for the most recently observed audio
// file name. Observing a different name drops the document.
type Cache struct {
	// work serializes uploads within one session.
	work sync.Mutex

	mu  sync.RWMutex
	key string
	doc *Document
}

// Observe records name as the current audio file. It reports whether a cached
// document was dropped because the name changed.
func (c *Cache) Observe(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key == name {
		return false
	}

	dropped := c.doc != nil
	c.key = name
	c.doc = nil
	return dropped
}

func (c *Cache) Key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key
}

func (c *Cache) Get() (Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.doc == nil {
		return Document{}, false
	}
	return *c.doc, true
}

// Set stores doc if key is still the observed name. A result for a file the
// user has since replaced is discarded.
func (c *Cache) Set(key string, doc Document) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key != key {
		return false
	}
	c.doc = &doc
	return true
}
