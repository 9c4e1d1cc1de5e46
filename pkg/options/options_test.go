package options

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dougsko/swrmeter/pkg/aggregate"
	"github.com/dougsko/swrmeter/pkg/band"
)

func TestAddresses(t *testing.T) {
	assert.Equal(t, int64(10), ParamAddr(OffsetFreqTune))
	assert.Equal(t, int64(26), ParamAddr(OffsetAutoBand))
	assert.Equal(t, int64(42), ParamAddr(OffsetCalibrate))
	assert.Equal(t, int64(90), ParamAddr(OffsetWeight))
	assert.Equal(t, int64(100), BandAddr(0))
	assert.Equal(t, int64(276), BandAddr(11))
	assert.Equal(t, 292, Size)

	t.Run("Records Do Not Collide", func(t *testing.T) {
		used := make(map[int64]string)
		claim := func(name string, addr int64, n int) {
			for a := addr; a < addr+int64(n); a++ {
				if other, ok := used[a]; ok {
					t.Fatalf("%s overlaps %s at %d", name, other, a)
				}
				used[a] = name
			}
		}
		claim("header", HeaderAddr, len(Magic)+1)
		for _, f := range paramFields {
			claim(f.name, ParamAddr(f.offset), paramSize)
		}
		for i := 0; i < band.Count; i++ {
			claim("band", BandAddr(i), bandSize)
		}
	})
}

func TestLoadBlankStore(t *testing.T) {
	store := NewMemoryStore(1024)
	o, repairs := Load(store)
	assert.Equal(t, Defaults(), o)
	require.Len(t, repairs, 1)
	assert.Equal(t, "header", repairs[0].Field)
}

func TestLoadShortStore(t *testing.T) {
	o, repairs := Load(NewMemoryStore(1))
	assert.Equal(t, Defaults(), o)
	assert.NotEmpty(t, repairs)
}

func TestSaveLoad(t *testing.T) {
	store := NewMemoryStore(1024)

	o := Defaults()
	o.FreqTune = Param{Value: 50, Flag: true}
	o.AutoBand = Param{Value: 30, Flag: true}
	o.Default = Param{Value: 12, Flag: false}
	o.Weight.Value = 250
	o.Bands[5] = band.Overlay{Reference: -7.5, Tune: false, AutoBand: true}

	require.NoError(t, Save(store, o))

	loaded, repairs := Load(store)
	assert.Empty(t, repairs)
	assert.Equal(t, o, loaded)

	raw := store.Bytes()
	assert.Equal(t, []byte("PM\x01"), raw[:3])
	assert.Equal(t, uint32(50), binary.LittleEndian.Uint32(raw[10:]))
	assert.Equal(t, byte(1), raw[14])
	assert.Equal(t, float32(-7.5), math.Float32frombits(binary.LittleEndian.Uint32(raw[BandAddr(5):])))
}

func TestSaveRejectsInvalid(t *testing.T) {
	store := NewMemoryStore(1024)
	o := Defaults()
	o.Weight.Value = 0
	assert.Error(t, Save(store, o))

	o = Defaults()
	o.Bands[0].Reference = math.NaN()
	assert.Error(t, Save(store, o))

	_, repairs := Load(store)
	assert.Equal(t, "header", repairs[0].Field, "nothing written")
}

func TestSaveOutsideStore(t *testing.T) {
	assert.Error(t, Save(NewMemoryStore(64), Defaults()))
}

func TestLoadRepairsFields(t *testing.T) {
	store := NewMemoryStore(1024)
	require.NoError(t, Save(store, Defaults()))

	writeInt := func(addr int64, v int32, flag byte) {
		buf := make([]byte, paramSize)
		binary.LittleEndian.PutUint32(buf, uint32(v))
		buf[4] = flag
		_, err := store.WriteAt(buf, addr)
		require.NoError(t, err)
	}

	writeInt(ParamAddr(OffsetCalibrate), -1, 0xFF)  // erased
	writeInt(ParamAddr(OffsetDefault), 5000, 0)     // too many samples
	writeInt(ParamAddr(OffsetWeight), -40, 1)       // below range
	writeInt(ParamAddr(OffsetAutoBand), 60, 7)      // corrupt flag
	_, err := store.WriteAt([]byte{0xFF, 0xFF, 0xFF, 0xFF, 1, 9}, BandAddr(3))
	require.NoError(t, err)

	o, repairs := Load(store)

	assert.Equal(t, Param{Value: 75, Flag: true}, o.Calibrate)
	assert.Equal(t, Param{Value: 1000, Flag: false}, o.Default)
	assert.Equal(t, Param{Value: 1, Flag: true}, o.Weight)
	assert.Equal(t, Param{Value: 60, Flag: false}, o.AutoBand)
	assert.Equal(t, band.Overlay{Reference: 0, Tune: true, AutoBand: true}, o.Bands[3])

	fields := make(map[string]bool)
	for _, r := range repairs {
		fields[r.Field] = true
	}
	assert.Equal(t, map[string]bool{
		"calibrate": true, "default": true, "weight": true, "autoband": true, "band[3]": true,
	}, fields)
	assert.NoError(t, o.Validate())
}

func TestVersionMismatch(t *testing.T) {
	store := NewMemoryStore(1024)
	o := Defaults()
	o.Weight.Value = 900
	require.NoError(t, Save(store, o))
	_, err := store.WriteAt([]byte{Version + 1}, 2)
	require.NoError(t, err)

	loaded, repairs := Load(store)
	assert.Equal(t, Defaults(), loaded)
	require.Len(t, repairs, 1)
	assert.Contains(t, repairs[0].String(), "version")
}

func TestConversions(t *testing.T) {
	o := Defaults()
	profiles := o.Profiles()
	assert.Equal(t, aggregate.DefaultProfiles(), profiles)

	o.Bands[9] = band.Overlay{Reference: 4}
	table := band.NewTable()
	require.NoError(t, o.ApplyBands(table))
	b, _ := table.Get(9)
	assert.Equal(t, 4.0, b.Reference)
	assert.False(t, b.AutoBand)
}

func TestSet(t *testing.T) {
	o := Defaults()

	require.NoError(t, o.Set("weight", "400"))
	assert.Equal(t, 400, o.Weight.Value)

	assert.Error(t, o.Set("FreqTune.flag", "true"), "names are snake case")
	require.NoError(t, o.Set("freq_tune.flag", "true"))
	assert.True(t, o.FreqTune.Flag)

	require.NoError(t, o.Set("band.5.reference", "-7.5"))
	require.NoError(t, o.Set("band.5.tune", "false"))
	require.NoError(t, o.Set("band.5.autoband", "0"))
	assert.Equal(t, band.Overlay{Reference: -7.5}, o.Bands[5])

	before := o
	for key, value := range map[string]string{
		"weight":           "0",
		"weight.value":     "x",
		"weight.colour":    "1",
		"volume":           "3",
		"band.12.tune":     "true",
		"band.5":           "1",
		"band.5.reference": "21",
		"band.5.colour":    "1",
		"autoband.flag":    "maybe",
		"band.x.reference": "1",
		"calibrate":        "1001",
		"band.5.autoband":  "yes",
	} {
		assert.Error(t, o.Set(key, value), key)
	}
	assert.Equal(t, before, o, "failed sets leave options unchanged")
}

func TestLoadRepairsAnyContents(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		contents := rapid.SliceOfN(rapid.Byte(), Size, Size).Draw(t, "contents")
		copy(contents, Magic)
		contents[len(Magic)] = Version

		store := NewMemoryStore(Size)
		if _, err := store.WriteAt(contents, 0); err != nil {
			t.Fatalf("write: %v", err)
		}

		o, _ := Load(store)
		if err := o.Validate(); err != nil {
			t.Fatalf("loaded options invalid: %v", err)
		}

		if err := Save(store, o); err != nil {
			t.Fatalf("save: %v", err)
		}
		again, repairs := Load(store)
		if len(repairs) != 0 {
			t.Fatalf("repairs after save: %v", repairs)
		}
		if again != o {
			t.Fatalf("round trip changed options: %+v != %+v", again, o)
		}
	})
}
