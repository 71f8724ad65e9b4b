package scanfieldcal

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"go.viam.com/rdk/logging"
)

type ParameterKind int

const (
	KindDouble ParameterKind = iota
	KindInt
	KindBool
)

// ParameterKey names one persisted value of ScanFieldImageParameters.
type ParameterKey int

// Scan-master keys come first, matching the order of Parameters.
const (
	KeyScanXToPixel ParameterKey = iota
	KeyScanYToPixel
	KeySlopePixel
	KeyMirrorX
	KeyMirrorY
	KeyXMinLeftMM
	KeyYMinTopMM
	KeyScanFieldImageWidth
	KeyScanFieldImageHeight
	numParameterKeys
)

// ParameterSpec declares a key's name, type, bounds and default. Bool values
// are represented as 0 and 1.
type ParameterSpec struct {
	Name    string
	Kind    ParameterKind
	Min     float64
	Max     float64
	Default float64
}

func (k ParameterKey) Spec() ParameterSpec {
	switch k {
	case KeyScanXToPixel:
		return ParameterSpec{"SM_scanXToPixel", KindDouble, -1000, 1000, 1}
	case KeyScanYToPixel:
		return ParameterSpec{"SM_scanYToPixel", KindDouble, -1000, 1000, 1}
	case KeySlopePixel:
		return ParameterSpec{"SM_slopePixel", KindDouble, -100, 100, 0}
	case KeyMirrorX:
		return ParameterSpec{"SM_mirrorX", KindBool, 0, 1, 0}
	case KeyMirrorY:
		return ParameterSpec{"SM_mirrorY", KindBool, 0, 1, 0}
	case KeyXMinLeftMM:
		return ParameterSpec{"xMinLeft_mm", KindDouble, -1000, 1000, 0}
	case KeyYMinTopMM:
		return ParameterSpec{"yMinTop_mm", KindDouble, -1000, 1000, 0}
	case KeyScanFieldImageWidth:
		return ParameterSpec{"ScanFieldImageWidth", KindInt, 0, 10000, 0}
	case KeyScanFieldImageHeight:
		return ParameterSpec{"ScanFieldImageHeight", KindInt, 0, 10000, 0}
	}
	return ParameterSpec{}
}

func (k ParameterKey) String() string {
	return k.Spec().Name
}

func ParameterKeys() []ParameterKey {
	keys := make([]ParameterKey, 0, numParameterKeys)
	for k := ParameterKey(0); k < numParameterKeys; k++ {
		keys = append(keys, k)
	}
	return keys
}

func ParseParameterKey(name string) (ParameterKey, bool) {
	for _, k := range ParameterKeys() {
		if k.Spec().Name == name {
			return k, true
		}
	}
	return 0, false
}

// Parameter is a key with its current value.
type Parameter struct {
	Key   ParameterKey
	Value float64
}

func (p Parameter) Name() string {
	return p.Key.Spec().Name
}

// Native returns the value as float64, int or bool according to the key kind.
func (p Parameter) Native() interface{} {
	switch p.Key.Spec().Kind {
	case KindInt:
		return int(p.Value)
	case KindBool:
		return p.Value != 0
	}
	return p.Value
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (p ScanFieldImageParameters) Get(k ParameterKey) float64 {
	switch k {
	case KeyScanXToPixel:
		return p.ScanMaster.XmmToPixel
	case KeyScanYToPixel:
		return p.ScanMaster.YmmToPixel
	case KeySlopePixel:
		return p.ScanMaster.Slope
	case KeyMirrorX:
		return boolValue(p.ScanMaster.MirrorX)
	case KeyMirrorY:
		return boolValue(p.ScanMaster.MirrorY)
	case KeyXMinLeftMM:
		return p.XMinLeftMM
	case KeyYMinTopMM:
		return p.YMinTopMM
	case KeyScanFieldImageWidth:
		return float64(p.Width)
	case KeyScanFieldImageHeight:
		return float64(p.Height)
	}
	return 0
}

func (p *ScanFieldImageParameters) set(k ParameterKey, v float64) {
	switch k {
	case KeyScanXToPixel:
		p.ScanMaster.XmmToPixel = v
	case KeyScanYToPixel:
		p.ScanMaster.YmmToPixel = v
	case KeySlopePixel:
		p.ScanMaster.Slope = v
	case KeyMirrorX:
		p.ScanMaster.MirrorX = v != 0
	case KeyMirrorY:
		p.ScanMaster.MirrorY = v != 0
	case KeyXMinLeftMM:
		p.XMinLeftMM = v
	case KeyYMinTopMM:
		p.YMinTopMM = v
	case KeyScanFieldImageWidth:
		p.Width = int(v)
	case KeyScanFieldImageHeight:
		p.Height = int(v)
	}
}

// Parameters lists every key with its current value.
func (p ScanFieldImageParameters) Parameters() []Parameter {
	out := make([]Parameter, 0, numParameterKeys)
	for _, k := range ParameterKeys() {
		out = append(out, Parameter{Key: k, Value: p.Get(k)})
	}
	return out
}

// Parameter looks a value up by key name.
func (p ScanFieldImageParameters) Parameter(name string) (Parameter, bool) {
	k, ok := ParseParameterKey(name)
	if !ok {
		return Parameter{}, false
	}
	return Parameter{Key: k, Value: p.Get(k)}, true
}

// SetParameter converts value to the key's kind and stores it if it is within
// bounds. Strings such as "1.5" or "true" are accepted.
func (p *ScanFieldImageParameters) SetParameter(name string, value interface{}) error {
	k, ok := ParseParameterKey(name)
	if !ok {
		return fmt.Errorf("unknown parameter %q", name)
	}
	spec := k.Spec()

	var v float64
	switch spec.Kind {
	case KindBool:
		var b bool
		if err := mapstructure.WeakDecode(value, &b); err != nil {
			return fmt.Errorf("parameter %s: %w", name, err)
		}
		v = boolValue(b)
	case KindInt:
		var i int64
		if err := mapstructure.WeakDecode(value, &i); err != nil {
			return fmt.Errorf("parameter %s: %w", name, err)
		}
		v = float64(i)
	default:
		if err := mapstructure.WeakDecode(value, &v); err != nil {
			return fmt.Errorf("parameter %s: %w", name, err)
		}
	}

	if v < spec.Min || v > spec.Max {
		return fmt.Errorf("parameter %s: %v outside [%v, %v]", name, v, spec.Min, spec.Max)
	}
	p.set(k, v)
	return nil
}

// LoadScanFieldImageParameters starts from the defaults and applies every key
// found in values. Keys that are missing keep their default, keys that cannot
// be converted are reset to it.
func LoadScanFieldImageParameters(values map[string]interface{}, logger logging.Logger) ScanFieldImageParameters {
	p := ScanFieldImageParameters{}
	for _, k := range ParameterKeys() {
		spec := k.Spec()
		p.set(k, spec.Default)

		raw, ok := values[spec.Name]
		if !ok {
			continue
		}
		if err := p.SetParameter(spec.Name, raw); err != nil {
			logger.Warnf("%v, reset to default %v", err, spec.Default)
			p.set(k, spec.Default)
		}
	}
	for name := range values {
		if _, ok := ParseParameterKey(name); !ok {
			logger.Debugf("ignoring unknown parameter %q", name)
		}
	}
	return p
}

// ToMap returns the key/value configuration with native value types.
func (p ScanFieldImageParameters) ToMap() map[string]interface{} {
	m := map[string]interface{}{}
	for _, prm := range p.Parameters() {
		m[prm.Name()] = prm.Native()
	}
	return m
}

// MarshalYAML keeps the keys in declaration order.
func (p ScanFieldImageParameters) MarshalYAML() (interface{}, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, prm := range p.Parameters() {
		value := &yaml.Node{}
		if err := value.Encode(prm.Native()); err != nil {
			return nil, err
		}
		doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: prm.Name()}, value)
	}
	return doc, nil
}

func SaveScanFieldImageParameters(path string, p ScanFieldImageParameters) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func ReadScanFieldImageParameters(path string, logger logging.Logger) (ScanFieldImageParameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ScanFieldImageParameters{}, err
	}

	values := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return ScanFieldImageParameters{}, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return LoadScanFieldImageParameters(values, logger), nil
}
