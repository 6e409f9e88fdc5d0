package entity

import (
	"fmt"
	"strings"
)

// CropType identifies which crop a leaf photo belongs to
type CropType string

const (
	CropMaize   CropType = "Maize"
	CropCassava CropType = "Cassava"
	CropCashew  CropType = "Cashew"
	CropTomato  CropType = "Tomato"
)

// DefaultCropType is selected until the user picks another crop
const DefaultCropType = CropMaize

// CropTypes lists the supported crops in display order
func CropTypes() []CropType {
	return []CropType{CropMaize, CropCassava, CropCashew, CropTomato}
}

// Valid reports whether c is one of the supported crops
func (c CropType) Valid() bool {
	switch c {
	case CropMaize, CropCassava, CropCashew, CropTomato:
		return true
	}
	return false
}

func (c CropType) String() string {
	return string(c)
}

// ParseCropType accepts any casing of a supported crop name
func ParseCropType(s string) (CropType, error) {
	s = strings.TrimSpace(s)
	for _, c := range CropTypes() {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unsupported crop type: %q", s)
}
