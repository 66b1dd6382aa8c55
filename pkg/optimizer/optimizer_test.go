package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	shanghai = Location{Name: "Shanghai", Latitude: 31.2304, Longitude: 121.4737}
	shenzhen = Location{Name: "Shenzhen", Latitude: 22.5431, Longitude: 114.0579}
	beijing  = Location{Name: "Beijing", Latitude: 39.9042, Longitude: 116.4074}
)

func TestOptimizePackagingSingleFit(t *testing.T) {
	items := []Item{{Name: "widget", Length: 5, Width: 5, Height: 5, Weight: 1, Quantity: 1}}
	specs := []PackageSpec{{Name: "box", Length: 10, Width: 10, Height: 10, WeightCapacity: 5}}

	solution := OptimizePackaging(items, specs)

	require.Len(t, solution.Packages, 1)
	assert.Empty(t, solution.UnassignedItems)
	assert.Equal(t, []string{"widget#1"}, solution.Packages[0].Items)
	assert.Equal(t, 125.0, solution.Packages[0].UsedVolume)
	assert.InDelta(t, 0.125, solution.Packages[0].VolumeUtilization, 1e-9)
}

func TestOptimizePackagingOverweightUnassigned(t *testing.T) {
	items := []Item{{Name: "anvil", Length: 2, Width: 2, Height: 2, Weight: 50, Quantity: 1}}
	specs := []PackageSpec{{Name: "box", Length: 10, Width: 10, Height: 10, WeightCapacity: 5}}

	solution := OptimizePackaging(items, specs)

	assert.Empty(t, solution.Packages)
	assert.Equal(t, []string{"anvil#1"}, solution.UnassignedItems)
}

func TestOptimizePackagingQuantityExpansion(t *testing.T) {
	items := []Item{{Name: "brick", Length: 5, Width: 5, Height: 5, Weight: 2, Quantity: 3}}
	specs := []PackageSpec{{Name: "box", Length: 10, Width: 10, Height: 10, WeightCapacity: 4}}

	solution := OptimizePackaging(items, specs)

	// Two units per box by weight, so the third opens a second box.
	require.Len(t, solution.Packages, 2)
	assert.Len(t, solution.Packages[0].Items, 2)
	assert.Len(t, solution.Packages[1].Items, 1)
	assert.Empty(t, solution.UnassignedItems)
}

func TestOptimizePackagingPrefersSmallestPackage(t *testing.T) {
	items := []Item{{Name: "widget", Length: 3, Width: 3, Height: 3, Weight: 1, Quantity: 1}}
	specs := []PackageSpec{
		{Name: "large", Length: 20, Width: 20, Height: 20, WeightCapacity: 50},
		{Name: "small", Length: 5, Width: 5, Height: 5, WeightCapacity: 5},
	}

	solution := OptimizePackaging(items, specs)

	require.Len(t, solution.Packages, 1)
	assert.Equal(t, "small", solution.Packages[0].Spec.Name)
}

func TestOptimizeShippingRoutesSortedByCost(t *testing.T) {
	carriers := []Carrier{
		{Name: "alpha", ServiceLevels: []ServiceLevel{{Level: "express", Rate: 2.0}, {Level: "standard", Rate: 1.0}}},
		{Name: "beta", ServiceLevels: []ServiceLevel{{Level: "economy", Rate: 0.8}}},
	}

	routes := OptimizeShippingRoutes(shanghai, shenzhen, 10, 1000, carriers)

	require.Len(t, routes, 3)
	for i := 1; i < len(routes); i++ {
		assert.LessOrEqual(t, routes[i-1].Cost, routes[i].Cost)
	}
	assert.Equal(t, "beta", routes[0].Carrier)
}

func TestShorterDistanceIsCheaperAndCleaner(t *testing.T) {
	carriers := []Carrier{
		{Name: "alpha", ServiceLevels: []ServiceLevel{{Level: "standard", Rate: 1.0}}},
	}

	short := OptimizeShippingRoutes(shanghai, shenzhen, 10, 100, carriers)
	long := OptimizeShippingRoutes(shanghai, beijing, 10, 100, carriers)

	require.Len(t, short, 1)
	require.Len(t, long, 1)
	assert.Less(t, short[0].DistanceKm, long[0].DistanceKm)
	assert.Less(t, short[0].Cost, long[0].Cost)
	assert.Less(t, short[0].CarbonFootprint, long[0].CarbonFootprint)
}

func TestServiceMultipliers(t *testing.T) {
	carriers := []Carrier{
		{Name: "alpha", ServiceLevels: []ServiceLevel{
			{Level: "express", Rate: 1.0},
			{Level: "standard", Rate: 1.0},
			{Level: "economy", Rate: 1.0},
		}},
	}

	routes := OptimizeShippingRoutes(shanghai, beijing, 1, 1, carriers)
	byLevel := map[string]ShippingRoute{}
	for _, r := range routes {
		byLevel[r.ServiceLevel] = r
	}

	assert.Less(t, byLevel["express"].EstimatedDays, byLevel["standard"].EstimatedDays)
	assert.Greater(t, byLevel["economy"].EstimatedDays, byLevel["standard"].EstimatedDays)
}

func TestOptimizeSupplyChain(t *testing.T) {
	items := []Item{{Name: "widget", Length: 5, Width: 5, Height: 5, Weight: 1, Quantity: 2}}
	specs := []PackageSpec{{Name: "box", Length: 10, Width: 10, Height: 10, WeightCapacity: 5}}
	carriers := []Carrier{
		{Name: "alpha", ServiceLevels: []ServiceLevel{{Level: "standard", Rate: 1.0}, {Level: "express", Rate: 1.8}}},
	}

	result := OptimizeSupplyChain(items, specs, shanghai, shenzhen, carriers)

	require.NotNil(t, result.SelectedRoute)
	assert.Equal(t, "standard", result.SelectedRoute.ServiceLevel)
	require.NotNil(t, result.EstimatedDelivery)
	// Low fill ratio in a 1000-volume box should produce a utilization hint.
	assert.NotEmpty(t, result.Recommendations)
}

func TestOptimizeSupplyChainNeverErrors(t *testing.T) {
	// Nothing fits and no carriers exist; result must still be populated.
	items := []Item{{Name: "anvil", Length: 50, Width: 50, Height: 50, Weight: 500, Quantity: 1}}
	result := OptimizeSupplyChain(items, nil, shanghai, shenzhen, nil)

	require.NotNil(t, result)
	assert.Nil(t, result.SelectedRoute)
	assert.Equal(t, []string{"anvil#1"}, result.Packing.UnassignedItems)
	assert.NotEmpty(t, result.Recommendations)
}
