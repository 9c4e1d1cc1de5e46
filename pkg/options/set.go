package options

import (
	"fmt"
	"strconv"
	"strings"
)

// Set changes one field addressed by key and validates the result.
// Keys are a parameter name ("weight"), a parameter flag ("weight.flag")
// or a band field ("band.5.reference", "band.5.tune", "band.5.autoband").
// On error o is left unchanged.
func (o *Options) Set(key, value string) error {
	next := *o
	if err := next.set(strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value)); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*o = next
	return nil
}

func (o *Options) set(key, value string) error {
	if strings.HasPrefix(key, "band.") {
		return o.setBand(strings.TrimPrefix(key, "band."), value)
	}

	name, field, _ := strings.Cut(key, ".")
	for _, f := range paramFields {
		if f.name != name {
			continue
		}
		p := f.get(o)
		switch field {
		case "", "value":
			v, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			p.Value = v
		case "flag":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			p.Flag = b
		default:
			return fmt.Errorf("unknown option %q", key)
		}
		return nil
	}
	return fmt.Errorf("unknown option %q", key)
}

func (o *Options) setBand(key, value string) error {
	idx, field, ok := strings.Cut(key, ".")
	if !ok {
		return fmt.Errorf("band option needs a field: band.%s", key)
	}
	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 || i >= len(o.Bands) {
		return fmt.Errorf("no band %q", idx)
	}

	b := &o.Bands[i]
	switch field {
	case "reference":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("band.%s: %w", key, err)
		}
		b.Reference = v
	case "tune", "autoband":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("band.%s: %w", key, err)
		}
		if field == "tune" {
			b.Tune = v
		} else {
			b.AutoBand = v
		}
	default:
		return fmt.Errorf("unknown band field %q", field)
	}
	return nil
}
