// Greedy destination clustering. Groups waiting requests whose destinations
// are close enough to plausibly share a route leg; the optimal policy uses the
// partition to prune pooling candidates.

package sim

// Cluster is a group of requests with nearby destinations.
type Cluster struct {
	Centroid Point
	Requests []*Request
}

// Clusterer partitions destinations by greedy spatial grouping: destinations
// are visited in input (arrival) order and join the first existing cluster,
// in creation order, whose centroid lies within the radius; otherwise they
// seed a new cluster. The same input order and radius always produce the same
// partition.
type Clusterer struct {
	RadiusKm float64
}

// Cluster partitions the given requests by destination.
func (c *Clusterer) Cluster(requests []*Request) []*Cluster {
	var clusters []*Cluster
	for _, req := range requests {
		placed := false
		for _, cl := range clusters {
			if c.withinRadius(req.Destination, cl.Centroid) {
				cl.add(req)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, &Cluster{
				Centroid: req.Destination,
				Requests: []*Request{req},
			})
		}
	}
	return clusters
}

// Compatible reports whether a destination is within the clustering radius of
// a reference point. Used to test a request against a trip's drop-off area.
func (c *Clusterer) Compatible(dest, ref Point) bool {
	return c.withinRadius(dest, ref)
}

func (c *Clusterer) withinRadius(p, centroid Point) bool {
	return distanceMeters(p, centroid) <= c.RadiusKm*1000
}

// add appends a request and recomputes the centroid incrementally.
func (cl *Cluster) add(req *Request) {
	n := float64(len(cl.Requests))
	cl.Centroid = Point{
		Lat: (cl.Centroid.Lat*n + req.Destination.Lat) / (n + 1),
		Lon: (cl.Centroid.Lon*n + req.Destination.Lon) / (n + 1),
	}
	cl.Requests = append(cl.Requests, req)
}
