package loader

import "math/rand"

// StratifiedFolds assigns every row to one of k folds (0..k-1). Within each
// class the repeated sequence 0,1,..,k-1 is shuffled over the class's rows, so
// every fold gets a near-equal share of every class.
func StratifiedFolds(y []int, k int, rng *rand.Rand) []int {
	byClass := map[int][]int{}
	classes := []int{}
	for i, c := range y {
		if _, ok := byClass[c]; !ok {
			classes = append(classes, c)
		}
		byClass[c] = append(byClass[c], i)
	}
	// map order is random; walk classes in first-seen order for reproducibility
	folds := make([]int, len(y))
	for _, c := range classes {
		rows := byClass[c]
		seq := make([]int, len(rows))
		for i := range seq {
			seq[i] = i % k
		}
		rng.Shuffle(len(seq), func(a, b int) { seq[a], seq[b] = seq[b], seq[a] })
		for i, row := range rows {
			folds[row] = seq[i]
		}
	}
	return folds
}

// TrainTestSplit splits rows into a training and a held-out set, stratified by
// class, holding out round(testRatio * classSize) rows of each class.
func TrainTestSplit(X [][]float64, y []int, testRatio float64, rng *rand.Rand) (XTrain, XTest [][]float64, yTrain, yTest []int) {
	byClass := map[int][]int{}
	classes := []int{}
	for i, c := range y {
		if _, ok := byClass[c]; !ok {
			classes = append(classes, c)
		}
		byClass[c] = append(byClass[c], i)
	}
	test := make([]bool, len(y))
	for _, c := range classes {
		rows := byClass[c]
		nTest := int(float64(len(rows))*testRatio + 0.5)
		for _, j := range rng.Perm(len(rows))[:nTest] {
			test[rows[j]] = true
		}
	}
	for i := range X {
		if test[i] {
			XTest = append(XTest, X[i])
			yTest = append(yTest, y[i])
		} else {
			XTrain = append(XTrain, X[i])
			yTrain = append(yTrain, y[i])
		}
	}
	return
}
