package loader

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// LoadHex parses a hex memory image. The image is a sequence of whitespace
// separated tokens: "@ADDR" moves the load cursor to the hexadecimal address
// ADDR, and every other token is one hexadecimal byte stored at the cursor,
// which then advances by one. Execution starts at address 0.
func LoadHex(r io.Reader) (*Program, error) {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)

	prog := &Program{}
	var (
		cursor uint32
		seg    *Segment
		token  int
	)

	flush := func() {
		if seg != nil && len(seg.Data) > 0 {
			seg.MemSize = uint32(len(seg.Data))
			prog.Segments = append(prog.Segments, *seg)
		}
		seg = nil
	}

	for scanner.Scan() {
		token++
		word := scanner.Text()

		if word[0] == '@' {
			addr, err := strconv.ParseUint(word[1:], 16, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: token %d %q: bad address", ErrMalformedImage, token, word)
			}
			flush()
			cursor = uint32(addr)
			continue
		}

		b, err := strconv.ParseUint(word, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: token %d %q: bad byte", ErrMalformedImage, token, word)
		}

		if seg == nil {
			seg = &Segment{
				VirtAddr: cursor,
				Flags:    SegmentFlagRead | SegmentFlagWrite | SegmentFlagExecute,
			}
		}
		seg.Data = append(seg.Data, byte(b))
		cursor++
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hex image: %w", err)
	}

	flush()

	return prog, nil
}
