package features

import (
	"maps"
	"slices"
)

// Pool maps an activity label to the feature vectors of one subject.
type Pool map[int][][]float64

// Dataset maps a subject id to that subject's pool.
type Dataset map[int]Pool

// Classes returns the pool's labels in ascending order.
func (p Pool) Classes() []int {
	return slices.Sorted(maps.Keys(p))
}

// Len is the total number of feature vectors in the pool.
func (p Pool) Len() int {
	n := 0
	for _, vectors := range p {
		n += len(vectors)
	}
	return n
}

// Subjects returns the dataset's subject ids in ascending order.
func (d Dataset) Subjects() []int {
	return slices.Sorted(maps.Keys(d))
}

// Split partitions data into every subject except heldOut, and heldOut alone.
func Split(data Dataset, heldOut int) (Dataset, Dataset) {
	train := Dataset{}
	test := Dataset{}
	for subject, pool := range data {
		if subject == heldOut {
			test[subject] = pool
		} else {
			train[subject] = pool
		}
	}
	return train, test
}

// Flatten un-groups a dataset into parallel vector and label slices, walking
// subjects and then classes in ascending order.
func Flatten(data Dataset) ([][]float64, []int) {
	vectors := [][]float64{}
	labels := []int{}
	for _, subject := range data.Subjects() {
		pool := data[subject]
		for _, class := range pool.Classes() {
			for _, v := range pool[class] {
				vectors = append(vectors, v)
				labels = append(labels, class)
			}
		}
	}
	return vectors, labels
}
