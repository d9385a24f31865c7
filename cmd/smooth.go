/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/goamg/InputParameters"
	"github.com/notargets/goamg/model_problems/Poisson"
	"github.com/notargets/goamg/smoother"
	"github.com/notargets/goamg/utils"
)

type ModelSmooth struct {
	InputFile string
	Problem   Poisson.ProblemType
	N         int
	AggSize   int
	NPDE      int
	Profile   bool
}

// SmoothReport summarizes one smoother run on a model problem.
type SmoothReport struct {
	Smoother       InputParameters.SmootherType
	Stats          *smoother.EnergyStats // nil for the Jacobi smoother
	NullspaceError float64
	EnergyBefore   float64
	EnergyAfter    float64
}

// SmoothCmd represents the smooth command
var SmoothCmd = &cobra.Command{
	Use:   "smooth",
	Short: "Smooth the tentative prolongator of a model problem",
	Long: `
Builds a model operator with aggregation based tentative prolongator and
constant near-nullspace, smooths the prolongator and reports the residual
history, the nullspace interpolation error and the energy tr(P^T A P).`,
	Run: func(cmd *cobra.Command, args []string) {
		ms := &ModelSmooth{
			InputFile: viper.GetString("inputConditionsFile"),
			Problem:   Poisson.ProblemType(viper.GetString("problem")),
			N:         viper.GetInt("nodes"),
			AggSize:   viper.GetInt("aggregate"),
			NPDE:      viper.GetInt("pdes"),
			Profile:   viper.GetBool("profile"),
		}
		ip := processInput(ms.InputFile)
		if ms.Profile {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
		}
		rpt, err := RunSmooth(ms, ip)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		rpt.Print(os.Stdout)
		if viper.GetBool("verbose") {
			fmt.Println(utils.GetMemUsage())
		}
	},
}

func init() {
	rootCmd.AddCommand(SmoothCmd)
	var (
		flags = SmoothCmd.Flags()
	)
	flags.StringP("inputConditionsFile", "I", "", "YAML file for smoother parameters")
	flags.StringP("problem", "p", string(Poisson.P_1DPoisson), "model problem, one of poisson1d, poisson2d, convection1d")
	flags.IntP("nodes", "n", 9, "number of nodes per direction")
	flags.IntP("aggregate", "a", 3, "number of consecutive nodes per aggregate")
	flags.Int("pdes", 1, "number of decoupled PDEs per node, block storage when > 1")
	flags.Bool("profile", false, "write a CPU profile to the current directory")
	for _, name := range []string{"inputConditionsFile", "problem", "nodes", "aggregate", "pdes", "profile"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func processInput(fileName string) (ip *InputParameters.SmootherParameters) {
	var (
		err  error
		data []byte
	)
	ip = InputParameters.NewSmootherParameters()
	if len(fileName) != 0 {
		if data, err = os.ReadFile(fileName); err != nil {
			panic(err)
		}
		if err = ip.Parse(data); err != nil {
			panic(err)
		}
	}
	if err = ip.Validate(); err != nil {
		panic(err)
	}
	ip.Print()
	return
}

// RunSmooth builds the model problem described by ms and smooths its
// tentative prolongator with the smoother selected in ip.
func RunSmooth(ms *ModelSmooth, ip *InputParameters.SmootherParameters) (rpt *SmoothReport, err error) {
	var (
		pb *Poisson.Problem
		P  *utils.BlockSparse
	)
	if pb, err = Poisson.NewProblem(ms.Problem, ms.N, ms.AggSize, ms.NPDE); err != nil {
		return
	}
	rpt = &SmoothReport{Smoother: ip.Smoother}
	switch ip.Smoother {
	case InputParameters.JacobiSmoother:
		P = jacobiSmooth(pb, ip.Omega)
	default:
		if P, rpt.Stats, err = smoother.EnergyProlongationSmoother(pb.A, pb.T, pb.Atilde, pb.B, ip); err != nil {
			return
		}
	}
	rpt.NullspaceError = smoother.NullspaceError(P, pb.T, pb.B)
	rpt.EnergyBefore = blockEnergy(pb.A, pb.T)
	rpt.EnergyAfter = blockEnergy(pb.A, P)
	return
}

func jacobiSmooth(pb *Poisson.Problem, omega float64) *utils.BlockSparse {
	switch A := pb.A.(type) {
	case utils.CSR:
		br, bc := pb.T.BlockSize()
		return smoother.JacobiProlongationSmoother(A, pb.T.ToCSR(), omega).ToBSR(br, bc)
	case *utils.BlockSparse:
		return smoother.JacobiProlongationSmoother(A, pb.T, omega)
	default:
		panic(fmt.Errorf("unsupported operator type %T", pb.A))
	}
}

func blockEnergy(A mat.Matrix, P *utils.BlockSparse) float64 {
	switch Am := A.(type) {
	case utils.CSR:
		return smoother.Energy(Am, P.ToCSR())
	case *utils.BlockSparse:
		return smoother.Energy(Am, P)
	default:
		panic(fmt.Errorf("unsupported operator type %T", A))
	}
}

func (rpt *SmoothReport) Print(w io.Writer) {
	fmt.Fprintf(w, "Smoother: %s\n", rpt.Smoother)
	if st := rpt.Stats; st != nil {
		switch {
		case st.Degenerate:
			fmt.Fprintf(w, "Degenerate level, tentative prolongator returned unchanged\n")
		case st.Fallback:
			fmt.Fprintf(w, "Constrained residual vanished, Jacobi smoother used instead\n")
		default:
			fmt.Fprintf(w, "Iterations: %d\n", st.Iterations)
			for i, r := range st.Residuals {
				fmt.Fprintf(w, "  iter %2d  max|R| = %10.4e\n", i, r)
			}
		}
	}
	fmt.Fprintf(w, "max|P*B - T*B|   = %10.4e\n", rpt.NullspaceError)
	fmt.Fprintf(w, "tr(T^T A T)      = %10.6f\n", rpt.EnergyBefore)
	fmt.Fprintf(w, "tr(P^T A P)      = %10.6f\n", rpt.EnergyAfter)
}
