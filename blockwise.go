// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"errors"
	"fmt"
)

// maximum block number that fits the 20 bit NUM field
const maxBlockNum = 1<<20 - 1

type BlockMetadata struct {
	Size int
	More bool
	Num  int
}

func blockInit(num int, more bool, sz int) *BlockMetadata {
	return &BlockMetadata{Size: sz, Num: num, More: more}
}

func blockDecode(buf []byte) (*BlockMetadata, error) {
	if len(buf) > 3 {
		return nil, errors.New("blockwise metadata invalid length")
	}
	v := decodeInt(buf)

	var bm BlockMetadata
	bm.More = v&0x08 == 0x08
	szx := v & 0x07
	if szx == 7 {
		return nil, errors.New("blockwise metadata reserved size")
	}
	bm.Size = 1 << (4 + szx)
	bm.Num = int(v >> 4)
	return &bm, nil
}

func (bm *BlockMetadata) szx() uint64 {
	szx := uint64(0)
	for sz := bm.Size; sz > 16; sz >>= 1 {
		szx++
	}
	return szx
}

func (bm *BlockMetadata) Encode() []byte {
	v := uint64(bm.Num)<<4 | bm.szx()
	if bm.More {
		v |= 0x08
	}
	return encodeInt(v)
}

func (bm *BlockMetadata) String() string {
	m := 0
	if bm.More {
		m = 1
	}
	return fmt.Sprintf("%d/%d/%d", bm.Num, m, bm.Size)
}

// messageBlock reads a block option of a received message. ok is false when
// the option is absent; an error means it is malformed or not our block size.
func messageBlock(opts options, id OptionID) (bm *BlockMetadata, ok bool, err error) {
	opt := opts.find(id)
	if opt == nil {
		return nil, false, nil
	}
	bm, err = blockDecode(opt.value)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if bm.Size != BlockSize && (bm.More || bm.Num != 0) {
		return nil, true, fmt.Errorf("%w: unsupported block size %d", ErrNotSupported, bm.Size)
	}
	return bm, true, nil
}
