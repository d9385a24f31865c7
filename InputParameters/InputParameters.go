package InputParameters

import (
	"fmt"

	"github.com/ghodss/yaml"
	"github.com/go-playground/validator/v10"
)

type SmootherType string

const (
	EnergySmoother SmootherType = "energy"
	JacobiSmoother SmootherType = "jacobi"
)

// Parameters obtained from the YAML input file
type SmootherParameters struct {
	Title      string       `json:"Title"`
	Smoother   SmootherType `json:"Smoother" validate:"oneof=energy jacobi"`
	SPD        bool         `json:"SPD"`
	NumIters   int          `json:"NumIters" validate:"gte=0"`
	MinTol     float64      `json:"MinTol" validate:"lte=1"`
	Omega      float64      `json:"Omega" validate:"gt=0"`
	PinvAbsTol float64      `json:"PinvAbsTol" validate:"gte=0"`
	PinvRelTol float64      `json:"PinvRelTol" validate:"gte=0,lt=1"`
	Parallel   int          `json:"Parallel" validate:"gte=0"`
	FileOutput string       `json:"FileOutput"`
}

var validate = validator.New()

// NewSmootherParameters returns the defaults: SPD, 4 iterations, 1e-8
// tolerance, omega = 4/3, pseudo-inverse thresholds 1e-10 (absolute) and
// 1e-8 (relative), one goroutine per CPU and no file output.
func NewSmootherParameters() (ip *SmootherParameters) {
	return &SmootherParameters{
		Smoother:   EnergySmoother,
		SPD:        true,
		NumIters:   4,
		MinTol:     1.e-8,
		Omega:      4. / 3.,
		PinvAbsTol: 1.e-10,
		PinvRelTol: 1.e-8,
	}
}

// Parse overlays the YAML document on the receiver, fields absent from the
// document keep their current values.
func (ip *SmootherParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

func (ip *SmootherParameters) Validate() error {
	return validate.Struct(ip)
}

func (ip *SmootherParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%s]\t\t\t= Smoother\n", ip.Smoother)
	fmt.Printf("[%v]\t\t\t= SPD\n", ip.SPD)
	fmt.Printf("[%d]\t\t\t\t= NumIters\n", ip.NumIters)
	fmt.Printf("%8.5e\t\t= MinTol\n", ip.MinTol)
	fmt.Printf("%8.5f\t\t= Omega\n", ip.Omega)
	fmt.Printf("%8.5e\t\t= PinvAbsTol\n", ip.PinvAbsTol)
	fmt.Printf("%8.5e\t\t= PinvRelTol\n", ip.PinvRelTol)
	fmt.Printf("[%d]\t\t\t\t= Parallel\n", ip.Parallel)
	if len(ip.FileOutput) != 0 {
		fmt.Printf("[%s]\t= FileOutput\n", ip.FileOutput)
	}
}
