// Package optimizer implements packaging and shipping-route optimization.
// All functions are pure and synchronous; failure to fully pack or route is
// reported inside the result, never as an error.
package optimizer

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Item is one product line to pack, expanded by Quantity during packing.
type Item struct {
	Name     string  `json:"name"`
	Length   float64 `json:"length"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Weight   float64 `json:"weight"`
	Quantity int     `json:"quantity"`
}

// Volume returns the raw cuboid volume of a single unit.
func (i Item) Volume() float64 { return i.Length * i.Width * i.Height }

// PackageSpec is an available package type.
type PackageSpec struct {
	Name           string  `json:"name"`
	Length         float64 `json:"length"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	WeightCapacity float64 `json:"weight_capacity"`
	Cost           float64 `json:"cost,omitempty"`
}

func (p PackageSpec) Volume() float64 { return p.Length * p.Width * p.Height }

// PackedPackage is one opened package with its assigned items.
type PackedPackage struct {
	Spec              PackageSpec `json:"spec"`
	Items             []string    `json:"items"`
	UsedVolume        float64     `json:"used_volume"`
	UsedWeight        float64     `json:"used_weight"`
	VolumeUtilization float64     `json:"volume_utilization"`
	WeightUtilization float64     `json:"weight_utilization"`
}

// PackingSolution is the result of OptimizePackaging.
type PackingSolution struct {
	Packages          []PackedPackage `json:"packages"`
	UnassignedItems   []string        `json:"unassigned_items"`
	TotalVolume       float64         `json:"total_volume"`
	TotalWeight       float64         `json:"total_weight"`
	VolumeUtilization float64         `json:"volume_utilization"`
	WeightUtilization float64         `json:"weight_utilization"`
}

// Location is a geographic point.
type Location struct {
	Name      string  `json:"name,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ServiceLevel is one carrier offering with its rate multiplier.
type ServiceLevel struct {
	Level string  `json:"level"` // express, standard, economy
	Rate  float64 `json:"rate"`
}

// Carrier offers one or more service levels.
type Carrier struct {
	Name          string         `json:"name"`
	ServiceLevels []ServiceLevel `json:"service_levels"`
}

// ShippingRoute is one scored carrier/service option.
type ShippingRoute struct {
	Carrier         string  `json:"carrier"`
	ServiceLevel    string  `json:"service_level"`
	DistanceKm      float64 `json:"distance_km"`
	Cost            float64 `json:"cost"`
	EstimatedDays   float64 `json:"estimated_days"`
	CarbonFootprint float64 `json:"carbon_footprint"`
}

// Result is the combined output of OptimizeSupplyChain.
type Result struct {
	Packing           PackingSolution `json:"packing"`
	Routes            []ShippingRoute `json:"routes"`
	SelectedRoute     *ShippingRoute  `json:"selected_route,omitempty"`
	EstimatedDelivery *time.Time      `json:"estimated_delivery,omitempty"`
	Recommendations   []string        `json:"recommendations"`
}

const earthRadiusKm = 6371.0

// Service multipliers for estimated transit time.
const (
	expressMultiplier = 0.7
	economyMultiplier = 1.5
)

// OptimizePackaging assigns item units to packages with a first-fit-decreasing
// heuristic: items sorted by descending volume, packages by ascending volume.
// Fit is checked against remaining weight capacity and raw dimensions only;
// the spatial footprint of already-placed items is ignored.
func OptimizePackaging(items []Item, specs []PackageSpec) PackingSolution {
	sortedItems := append([]Item(nil), items...)
	sort.Slice(sortedItems, func(i, j int) bool {
		return sortedItems[i].Volume() > sortedItems[j].Volume()
	})
	sortedSpecs := append([]PackageSpec(nil), specs...)
	sort.Slice(sortedSpecs, func(i, j int) bool {
		return sortedSpecs[i].Volume() < sortedSpecs[j].Volume()
	})

	solution := PackingSolution{UnassignedItems: []string{}}
	var opened []*PackedPackage

	for _, item := range sortedItems {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		for unit := 0; unit < qty; unit++ {
			label := unitLabel(item, unit)
			placed := false

			for _, pkg := range opened {
				if fitsIn(item, pkg.Spec) && pkg.UsedWeight+item.Weight <= pkg.Spec.WeightCapacity {
					place(pkg, item, label)
					placed = true
					break
				}
			}
			if placed {
				continue
			}

			// Open the smallest package type that can take this unit.
			for _, spec := range sortedSpecs {
				if fitsIn(item, spec) && item.Weight <= spec.WeightCapacity {
					pkg := &PackedPackage{Spec: spec}
					place(pkg, item, label)
					opened = append(opened, pkg)
					placed = true
					break
				}
			}
			if !placed {
				solution.UnassignedItems = append(solution.UnassignedItems, label)
			}
		}
	}

	var capVolume, capWeight float64
	for _, pkg := range opened {
		pkg.VolumeUtilization = ratio(pkg.UsedVolume, pkg.Spec.Volume())
		pkg.WeightUtilization = ratio(pkg.UsedWeight, pkg.Spec.WeightCapacity)
		solution.Packages = append(solution.Packages, *pkg)
		solution.TotalVolume += pkg.UsedVolume
		solution.TotalWeight += pkg.UsedWeight
		capVolume += pkg.Spec.Volume()
		capWeight += pkg.Spec.WeightCapacity
	}
	solution.VolumeUtilization = ratio(solution.TotalVolume, capVolume)
	solution.WeightUtilization = ratio(solution.TotalWeight, capWeight)

	return solution
}

// OptimizeShippingRoutes scores every carrier/service pair for the given
// shipment and returns all routes sorted ascending by cost.
func OptimizeShippingRoutes(origin, destination Location, weight, volume float64, carriers []Carrier) []ShippingRoute {
	distance := haversineKm(origin, destination)

	var routes []ShippingRoute
	for _, carrier := range carriers {
		for _, service := range carrier.ServiceLevels {
			base := weight*0.5 + volume*0.001 + distance*0.1
			routes = append(routes, ShippingRoute{
				Carrier:         carrier.Name,
				ServiceLevel:    service.Level,
				DistanceKm:      distance,
				Cost:            round2(base * service.Rate),
				EstimatedDays:   round2(distance / 800 * serviceMultiplier(service.Level)),
				CarbonFootprint: round2(distance * weight * 0.1),
			})
		}
	}

	sort.Slice(routes, func(i, j int) bool { return routes[i].Cost < routes[j].Cost })
	return routes
}

// OptimizeSupplyChain packs the items, scores the routes for the packed
// shipment, picks the cheapest route and annotates the result with
// recommendations. It always returns a result.
func OptimizeSupplyChain(items []Item, specs []PackageSpec, origin, destination Location, carriers []Carrier) *Result {
	packing := OptimizePackaging(items, specs)
	routes := OptimizeShippingRoutes(origin, destination, packing.TotalWeight, packing.TotalVolume, carriers)

	result := &Result{
		Packing:         packing,
		Routes:          routes,
		Recommendations: []string{},
	}

	if len(routes) > 0 {
		best := routes[0]
		result.SelectedRoute = &best
		delivery := time.Now().Add(time.Duration(best.EstimatedDays * 24 * float64(time.Hour)))
		result.EstimatedDelivery = &delivery
	}

	result.Recommendations = append(result.Recommendations, recommendations(packing, routes)...)
	return result
}

func recommendations(packing PackingSolution, routes []ShippingRoute) []string {
	var recs []string

	if n := len(packing.UnassignedItems); n > 0 {
		recs = append(recs, fmt.Sprintf("%d item unit(s) could not be assigned to any package; consider larger or higher-capacity packaging", n))
	}
	if len(packing.Packages) > 0 && packing.VolumeUtilization < 0.7 {
		recs = append(recs, fmt.Sprintf("average volume utilization is %.0f%%; smaller packages would reduce wasted space", packing.VolumeUtilization*100))
	}
	if len(packing.Packages) > 0 && packing.WeightUtilization < 0.5 {
		recs = append(recs, fmt.Sprintf("average weight utilization is %.0f%%; consolidating shipments could cut package count", packing.WeightUtilization*100))
	}

	if len(routes) > 1 {
		selected := routes[0]
		// routes are cost-sorted, so any materially cheaper option would be
		// first; instead compare the selected route against lower-carbon ones.
		for _, alt := range routes[1:] {
			if selected.CarbonFootprint > 0 && alt.CarbonFootprint < selected.CarbonFootprint*0.8 {
				recs = append(recs, fmt.Sprintf("route %s/%s emits over 20%% less carbon than the selected route", alt.Carrier, alt.ServiceLevel))
				break
			}
		}
		for _, alt := range routes[1:] {
			if alt.EstimatedDays < selected.EstimatedDays && alt.Cost < selected.Cost*1.1 {
				recs = append(recs, fmt.Sprintf("route %s/%s is faster for less than 10%% extra cost", alt.Carrier, alt.ServiceLevel))
				break
			}
		}
	}

	return recs
}

func fitsIn(item Item, spec PackageSpec) bool {
	return item.Length <= spec.Length && item.Width <= spec.Width && item.Height <= spec.Height
}

func place(pkg *PackedPackage, item Item, label string) {
	pkg.Items = append(pkg.Items, label)
	pkg.UsedVolume += item.Volume()
	pkg.UsedWeight += item.Weight
}

func unitLabel(item Item, unit int) string {
	name := item.Name
	if name == "" {
		name = "item"
	}
	return fmt.Sprintf("%s#%d", name, unit+1)
}

func serviceMultiplier(level string) float64 {
	switch level {
	case "express":
		return expressMultiplier
	case "economy":
		return economyMultiplier
	default:
		return 1.0
	}
}

func haversineKm(a, b Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

func ratio(used, capacity float64) float64 {
	if capacity == 0 {
		return 0
	}
	return used / capacity
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
