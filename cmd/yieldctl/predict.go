package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Alias1177/YieldPredictor/internal/backend"
	"github.com/Alias1177/YieldPredictor/internal/forecast"
	"github.com/Alias1177/YieldPredictor/internal/render"
	"github.com/Alias1177/YieldPredictor/models"
)

var errPredictionFailed = errors.New("prediction failed")

var (
	form = models.DefaultRequest()
	sets []string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict crop yield for one field",
	Example: `  yieldctl predict --crop Wheat --soil Clay --rainfall 550
  yieldctl predict -b local --set nitrogen=90 --set k=40 -o json`,
	Args: cobra.NoArgs,
	RunE: runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringVar(&form.Crop, "crop", form.Crop, "crop type: "+strings.Join(models.Crops, ", "))
	f.Float64Var(&form.Area, "area", form.Area, "land area in hectares")
	f.StringVar(&form.SoilType, "soil", form.SoilType, "soil type: "+strings.Join(models.SoilTypes, ", "))
	f.Float64Var(&form.AnnualRainfall, "rainfall", form.AnnualRainfall, "annual rainfall in mm")
	f.Float64Var(&form.AvgTemperature, "temperature", form.AvgTemperature, "average temperature in °C")
	f.Float64Var(&form.Nitrogen, "nitrogen", form.Nitrogen, "nitrogen level in kg/ha")
	f.Float64Var(&form.Phosphorus, "phosphorus", form.Phosphorus, "phosphorus level in kg/ha")
	f.Float64Var(&form.Potassium, "potassium", form.Potassium, "potassium level in kg/ha")
	f.StringArrayVar(&sets, "set", nil, "override a field as key=value (repeatable)")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	req, err := applySets(form, sets)
	if err != nil {
		return err
	}

	reg, err := backend.Build(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	orch, err := forecast.New(reg, flagBackend, forecast.WithTimeout(flagTimeout))
	if err != nil {
		return err
	}

	return predict(cmd, orch, req, cmd.OutOrStdout())
}

// predict submits req and renders the settled state to w
func predict(cmd *cobra.Command, orch *forecast.Orchestrator, req models.PredictionRequest, w io.Writer) error {
	orch.OnChange(func(s forecast.State) {
		log.Debug().Str("backend", s.Backend).Str("status", s.Status.String()).Uint64("seq", s.Seq).Msg("State changed")
	})

	ticket, err := orch.Submit(cmd.Context(), req)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), render.ErrorText(models.Normalize(err)))
		return errPredictionFailed
	}
	if err := ticket.Wait(cmd.Context()); err != nil {
		return err
	}

	state := orch.State()
	if err := render.Write(w, format, state); err != nil {
		return err
	}
	if state.Status == forecast.StatusFailed {
		return errPredictionFailed
	}
	return nil
}

// applySets layers key=value overrides on top of the flag values
func applySets(req models.PredictionRequest, pairs []string) (models.PredictionRequest, error) {
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return req, fmt.Errorf("--set %q: expected key=value", pair)
		}
		next, err := req.WithField(key, value)
		if err != nil {
			return req, err
		}
		req = next
	}
	return req, nil
}
