package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"

	"ifgstack/internal/filter"
	"ifgstack/internal/request"
	"ifgstack/internal/services"
)

// ProductType is the dataset and product type of every bundle.
const ProductType = "ifg-stack"

// Met is the product metadata document. Coordinates in BBox are [lat, lon].
type Met struct {
	BBox               [][2]request.Scalar `json:"bbox"`
	DatasetType        string              `json:"dataset_type"`
	ProductType        string              `json:"product_type"`
	Reference          bool                `json:"reference"`
	SensingTimeInitial string              `json:"sensing_time_initial"`
	SensingTimeFinal   string              `json:"sensing_time_final"`
	Sensor             string              `json:"sensor"`
	Platform           []string            `json:"platform"`
	SpacecraftName     []string            `json:"spacecraftName"`
	Tags               []string            `json:"tags"`
	TrackNumber        int                 `json:"trackNumber"`
	Swath              []int               `json:"swath"`
	IfgCount           int                 `json:"ifg_count"`
	Ifgs               []string            `json:"ifgs"`
	TimestepCount      int                 `json:"timestep_count"`
	Timesteps          []string            `json:"timesteps"`
}

// Location is a GeoJSON polygon with [lon, lat] positions.
type Location struct {
	Type        string                `json:"type"`
	Coordinates [][][2]request.Scalar `json:"coordinates"`
}

// Dataset is the catalog registration descriptor.
type Dataset struct {
	Version   string   `json:"version"`
	Label     string   `json:"label"`
	Location  Location `json:"location"`
	StartTime string   `json:"starttime"`
	EndTime   string   `json:"endtime"`
}

// Input carries everything the descriptors are derived from.
type Input struct {
	ID        string
	Version   string
	Request   *request.StackRequest
	Result    *filter.Result
	Timesteps []string
}

// Files lists the written descriptor paths.
type Files struct {
	Met     string
	Dataset string
}

// MetFileName returns the met.json name for id.
func MetFileName(id string) string { return id + ".met.json" }

// DatasetFileName returns the dataset.json name for id.
func DatasetFileName(id string) string { return id + ".dataset.json" }

// BuildMet assembles the product metadata document.
func BuildMet(in Input) Met {
	region := in.Result.Region
	platforms := in.Result.Platforms()
	if platforms == nil {
		platforms = []string{}
	}
	return Met{
		BBox: [][2]request.Scalar{
			{region.MaxLat, region.MaxLon},
			{region.MaxLat, region.MinLon},
			{region.MinLat, region.MinLon},
			{region.MinLat, region.MaxLon},
			{region.MaxLat, region.MaxLon},
		},
		DatasetType:        ProductType,
		ProductType:        ProductType,
		Reference:          false,
		SensingTimeInitial: first(in.Timesteps),
		SensingTimeFinal:   last(in.Timesteps),
		Sensor:             in.Result.SensorName(),
		Platform:           platforms,
		SpacecraftName:     platforms,
		Tags:               []string{in.Request.Project},
		TrackNumber:        in.Result.Track(),
		Swath:              in.Request.Subswath,
		IfgCount:           in.Result.Len(),
		Ifgs:               in.Result.Products(),
		TimestepCount:      len(in.Timesteps),
		Timesteps:          in.Timesteps,
	}
}

// BuildDataset assembles the registration descriptor.
func BuildDataset(in Input) Dataset {
	region := in.Result.Region
	return Dataset{
		Version: in.Version,
		Label:   in.ID,
		Location: Location{
			Type: "Polygon",
			Coordinates: [][][2]request.Scalar{{
				{region.MaxLon, region.MaxLat},
				{region.MaxLon, region.MinLat},
				{region.MinLon, region.MinLat},
				{region.MinLon, region.MaxLat},
				{region.MaxLon, region.MaxLat},
			}},
		},
		StartTime: first(in.Timesteps),
		EndTime:   last(in.Timesteps),
	}
}

// Footprint returns the dataset polygon ring as [lon, lat] floats.
func (d Dataset) Footprint() [][2]float64 {
	if len(d.Location.Coordinates) == 0 {
		return nil
	}
	ring := d.Location.Coordinates[0]
	out := make([][2]float64, 0, len(ring))
	for _, pos := range ring {
		lon, _ := pos[0].Float64()
		lat, _ := pos[1].Float64()
		out = append(out, [2]float64{lon, lat})
	}
	return out
}

// Emit writes both descriptors into dir.
func Emit(dir string, in Input) (Files, error) {
	if in.Result == nil || in.Request == nil {
		return Files{}, services.Wrap(services.ErrAssembly, "metadata", "emit", "Missing request or filter result", nil)
	}
	if len(in.Timesteps) == 0 {
		return Files{}, services.Wrap(services.ErrAssembly, "metadata", "emit", "No timesteps for "+in.ID, nil)
	}
	files := Files{
		Met:     filepath.Join(dir, MetFileName(in.ID)),
		Dataset: filepath.Join(dir, DatasetFileName(in.ID)),
	}
	if err := writeJSON(files.Met, BuildMet(in)); err != nil {
		return Files{}, services.Wrap(services.ErrAssembly, "metadata", "write met", files.Met, err)
	}
	if err := writeJSON(files.Dataset, BuildDataset(in)); err != nil {
		return Files{}, services.Wrap(services.ErrAssembly, "metadata", "write dataset", files.Dataset, err)
	}
	return files, nil
}

// ReadDataset loads a dataset descriptor written by Emit.
func ReadDataset(path string) (Dataset, error) {
	var ds Dataset
	data, err := os.ReadFile(path)
	if err != nil {
		return ds, err
	}
	err = json.Unmarshal(data, &ds)
	return ds, err
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func last(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}
