package serialize

import "strings"

// ThreadEvents encodes a thread-events response frame: the raw,
// already-serialized event frames retained for one thread, embedded
// verbatim as the `events` array.
func ThreadEvents(threadID uint64, frames [][]byte) []byte {
	w := newObjectWriter()
	w.str("type", "thread-events")
	w.uint("threadId", threadID)

	var arr strings.Builder
	arr.WriteByte('[')
	for i, f := range frames {
		if i > 0 {
			arr.WriteByte(',')
		}
		arr.Write(f)
	}
	arr.WriteByte(']')
	w.raw("events", arr.String())

	return w.bytes()
}
