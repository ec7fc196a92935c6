package abi

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Masterminds/semver/v3"
)

type Version struct {
	Major uint8
	Minor uint8
}

var (
	Version1_0 = Version{1, 0}
	Version2_0 = Version{2, 0}
	Version2_1 = Version{2, 1}
	Version2_2 = Version{2, 2}
	Version2_3 = Version{2, 3}
	Version2_4 = Version{2, 4}

	DefaultVersion = Version2_2
	LatestVersion  = Version2_4
)

// ParseVersion accepts "2", "2.3" and "2.3.0" like strings.
func ParseVersion(s string) (Version, error) {
	v, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("%w: bad version %q: %v", ErrInvalidSchema, s, err)
	}

	ver := Version{Major: uint8(v.Major()), Minor: uint8(v.Minor())}
	if !ver.supported() {
		return Version{}, fmt.Errorf("%w: unsupported abi version %s", ErrInvalidSchema, ver)
	}
	return ver, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

func (v Version) supported() bool {
	return v == Version1_0 || (v.Major == 2 && v.Minor <= LatestVersion.Minor)
}

// AtLeast reports whether v is the same or newer than other.
func (v Version) AtLeast(other Version) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	return v.Minor >= other.Minor
}

func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *Version) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// "ABI version": 2
		var n uint8
		if err = json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("%w: bad version %s", ErrInvalidSchema, string(data))
		}
		s = strconv.Itoa(int(n))
	}

	ver, err := ParseVersion(s)
	if err != nil {
		return err
	}
	*v = ver
	return nil
}

// layout holds every version dependent packing rule in one place.
type layout struct {
	// signature and public key are stored in the first ref of the body
	signatureInRef bool
	// the last ref of each cell is kept free for the chain continuation
	reserveLastRef bool
	// free space is counted by max type sizes instead of actual ones
	maxSizeBudget bool
	// destination address is hashed together with the body
	signWithAddress bool
	// header types are part of function signature
	headerInSignature bool
	// bytes chains start with the partial chunk, full cells follow
	bytesRemainderFirst bool
}

func (v Version) layout() layout {
	return layout{
		signatureInRef:    v.Major == 1,
		reserveLastRef:    v == Version1_0,
		maxSizeBudget:     v.AtLeast(Version2_2),
		signWithAddress:   v.AtLeast(Version2_3),
		headerInSignature: v.Major == 1,

		bytesRemainderFirst: v.Major == 1,
	}
}
