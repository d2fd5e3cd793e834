package binstore

import (
	"fmt"
	"strconv"

	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/model"
)

// Bin records travel as flat field maps (a Redis hash, or the equivalent
// in-memory map). These helpers convert between that representation and
// model.BinRecord in one place so both Store implementations agree.

func fieldString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func recordFromFields(id string, fields map[string]string) model.BinRecord {
	status, _ := strconv.ParseBool(fields[model.FieldStatus])
	return model.BinRecord{
		ID:             id,
		Status:         status,
		BinFilled:      fields["binFilled"],
		BinLidSensor:   fields["binLidSensor"],
		BinStoreSensor: fields["binStoreSensor"],
		Lid:            fields["lid"],
		LidDistance:    fields["lidDistance"],
		Servo:          fields["servo"],
		BinHeight:      fields[model.FieldBinHeight],
	}
}
