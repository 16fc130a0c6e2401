// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[prediction.DemandForecaster]()
//	reg.MustRegister("static", func(conf map[string]any) (prediction.DemandForecaster, error) {
//	    var c struct{ Profile []float64 `json:"profile"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return prediction.StaticForecaster{Profile: c.Profile}, nil
//	})
//	f, err := reg.Create(factory.ModuleConfig{Type: "static", Conf: map[string]any{"profile": []float64{300}}})
package factory
