package initwfn

import (
	"encoding/json"
	"reflect"
	"testing"

	"gorgonia.org/tensor"
)

func TestInitWFnJSONRoundTrip(t *testing.T) {
	glorotU, err := NewGlorotU(1.0)
	if err != nil {
		t.Fatal(err)
	}
	glorotN, err := NewGlorotN(1.5)
	if err != nil {
		t.Fatal(err)
	}
	heU, err := NewHeU(1.0)
	if err != nil {
		t.Fatal(err)
	}
	heN, err := NewHeN(2.0)
	if err != nil {
		t.Fatal(err)
	}
	gaussian, err := NewGaussian(0.0, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	uniform, err := NewUniform(-0.5, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	zeroes, err := NewZeroes()
	if err != nil {
		t.Fatal(err)
	}
	ones, err := NewOnes()
	if err != nil {
		t.Fatal(err)
	}
	constant, err := NewConstant(0.25)
	if err != nil {
		t.Fatal(err)
	}

	for _, init := range []*InitWFn{glorotU, glorotN, heU, heN, gaussian,
		uniform, zeroes, ones, constant} {
		data, err := json.Marshal(init)
		if err != nil {
			t.Fatalf("could not marshal %v initializer: %v", init.Type, err)
		}

		got := new(InitWFn)
		if err := json.Unmarshal(data, got); err != nil {
			t.Fatalf("could not unmarshal %v initializer: %v", init.Type,
				err)
		}
		if got.Type != init.Type {
			t.Errorf("invalid initializer type after round trip "+
				"\n\twant(%v) \n\thave(%v)", init.Type, got.Type)
		}
		if !reflect.DeepEqual(got.Config, init.Config) {
			t.Errorf("invalid %v configuration after round trip "+
				"\n\twant(%v) \n\thave(%v)", init.Type, init.Config,
				got.Config)
		}
		if got.InitWFn() == nil {
			t.Errorf("no %v InitWFn created after round trip", init.Type)
		}
	}
}

func TestDeterministicInitWFnValues(t *testing.T) {
	zeroes, err := NewZeroes()
	if err != nil {
		t.Fatal(err)
	}
	ones, err := NewOnes()
	if err != nil {
		t.Fatal(err)
	}
	constant, err := NewConstant(0.25)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		init *InitWFn
		want float64
	}{
		{zeroes, 0.0},
		{ones, 1.0},
		{constant, 0.25},
	}
	for _, test := range tests {
		values := test.init.InitWFn()(tensor.Float64, 2, 3).([]float64)
		if len(values) != 6 {
			t.Fatalf("invalid number of %v weights \n\twant(%v) "+
				"\n\thave(%v)", test.init.Type, 6, len(values))
		}
		for i, value := range values {
			if value != test.want {
				t.Errorf("invalid %v weight at index %v \n\twant(%v) "+
					"\n\thave(%v)", test.init.Type, i, test.want, value)
			}
		}
	}
}
