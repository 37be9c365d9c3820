package loaders

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/spaghettifunk/octoon/engine/core"
)

// first word of every SPIR-V module
const SPIRV_MAGIC uint32 = 0x07230203

type BinaryParams struct {
	Name string
	// Reject the file unless it is a SPIR-V module.
	SPIRV bool
}

type BinaryLoader struct{}

func (bl *BinaryLoader) Load(path string, params interface{}) (*Resource, error) {
	p, _ := params.(*BinaryParams)
	if p == nil {
		p = &BinaryParams{}
	}

	f, err := os.Open(path)
	if err != nil {
		err = fmt.Errorf("binary '%s': %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		err = fmt.Errorf("binary '%s': %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}

	if p.SPIRV {
		if err := validateSPIRV(buf); err != nil {
			err = fmt.Errorf("binary '%s': %w", path, err)
			core.LogError(err.Error())
			return nil, err
		}
	}

	name := p.Name
	if name == "" {
		name = resourceName(path)
	}
	return &Resource{
		Name:     name,
		FullPath: path,
		Type:     RESOURCE_TYPE_BINARY,
		DataSize: uint64(len(buf)),
		Data:     buf,
	}, nil
}

func (bl *BinaryLoader) Unload(*Resource) error {
	return nil
}

func validateSPIRV(b []byte) error {
	if len(b) < 4 || len(b)%4 != 0 {
		return fmt.Errorf("SPIR-V size %d is not a positive multiple of 4: %w", len(b), core.ErrInvalidDesc)
	}
	if magic := binary.LittleEndian.Uint32(b); magic != SPIRV_MAGIC {
		return fmt.Errorf("SPIR-V magic 0x%08x, expected 0x%08x: %w", magic, SPIRV_MAGIC, core.ErrInvalidDesc)
	}
	return nil
}
