package imaging

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/jiangyuyi/feather-trace/internal/errors"
)

// Sharpness scores the focus quality of an image as the variance of its
// Laplacian. A defocused or motion-blurred frame scores near zero; crisp
// feather detail scores orders of magnitude higher.
func Sharpness(path string) (float64, error) {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	if img.Empty() {
		return 0, errors.New(fmt.Errorf("cannot read image for sharpness scoring: %s", path)).
			Component("imaging").
			Category(errors.CategoryImageProcessing).
			Build()
	}
	defer img.Close()

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(img, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean := gocv.NewMat()
	defer mean.Close()
	stdDev := gocv.NewMat()
	defer stdDev.Close()
	gocv.MeanStdDev(lap, &mean, &stdDev)

	sd := stdDev.GetDoubleAt(0, 0)
	return sd * sd, nil
}
