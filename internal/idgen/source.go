package idgen

import "fmt"

const DefaultCodeLength = 6

// CodeSource yields candidate short codes. Uniqueness is enforced by the store.
type CodeSource interface {
	NextCode() (string, error)
}

type RandomSource struct {
	Length int
}

func (r RandomSource) NextCode() (string, error) {
	return RandomCode(r.Length)
}

// SequentialSource encodes snowflake ids, so codes never collide within one generator.
type SequentialSource struct {
	gen *Snowflake
}

func NewSequentialSource(datacenterID, workerID int64) (*SequentialSource, error) {
	gen, err := NewSnowflake(datacenterID, workerID)
	if err != nil {
		return nil, err
	}
	return &SequentialSource{gen: gen}, nil
}

func (s *SequentialSource) NextCode() (string, error) {
	id, err := s.gen.NextID()
	if err != nil {
		return "", err
	}
	return Encode(id), nil
}

// NewSource picks a strategy by name: "random" (default) or "snowflake".
func NewSource(strategy string, length int, datacenterID, workerID int64) (CodeSource, error) {
	switch strategy {
	case "", "random":
		if length <= 0 {
			return nil, fmt.Errorf("code length must be positive, got %d", length)
		}
		return RandomSource{Length: length}, nil
	case "snowflake":
		return NewSequentialSource(datacenterID, workerID)
	default:
		return nil, fmt.Errorf("unknown code strategy %q", strategy)
	}
}
