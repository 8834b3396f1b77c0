package host

// A change is an edit to the document that happened after earlier inserts
// were queued. Colors arrive for inserted bytes in order; later changes move
// the bytes they belong to.
type change interface {
	// adjust maps a position from before the change to after it, or -1 if
	// the change removed it.
	adjust(pos int) int
}

// insert is text whose colors have not all been dequeued yet.
type insert struct {
	at   int
	text string
	off  int // bytes already dequeued
}

func (i *insert) remaining() int {
	return len(i.text) - i.off
}

// next returns the original position of the next byte to dequeue.
func (i *insert) next() int {
	return i.at + i.off
}

// consume marks one byte dequeued and reports whether the insert is done.
func (i *insert) consume() bool {
	i.off++
	return i.remaining() == 0
}

func (i *insert) adjust(pos int) int {
	if i.at <= pos {
		return pos + i.remaining()
	}
	return pos
}

type remove struct {
	at, n int
}

func (r *remove) adjust(pos int) int {
	switch {
	case r.at <= pos && pos < r.at+r.n:
		return -1
	case r.at+r.n <= pos:
		return pos - r.n
	}
	return pos
}

// document is the queue of changes whose effect on outstanding colors is
// still needed.
type document struct {
	changes []change
}

func (d *document) insert(at int, text string) {
	d.changes = append(d.changes, &insert{at: at, text: text})
}

func (d *document) remove(at, n int) {
	d.changes = append(d.changes, &remove{at: at, n: n})
}

// head drops leading removes and returns the oldest insert, if any.
func (d *document) head() *insert {
	for len(d.changes) > 0 {
		if i, ok := d.changes[0].(*insert); ok {
			return i
		}
		d.changes = d.changes[1:]
	}
	return nil
}

// position consumes the next byte of the oldest insert and returns where it
// is now, or -1 if it has since been removed. ok is false when no insert is
// outstanding.
func (d *document) position() (pos int, ok bool) {
	m := d.head()
	if m == nil {
		return -1, false
	}
	pos = m.next()
	for _, c := range d.changes[1:] {
		if pos = c.adjust(pos); pos < 0 {
			break
		}
	}
	if m.consume() {
		d.changes = d.changes[1:]
	}
	return pos, true
}
