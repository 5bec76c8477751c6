// Package imageio reads class-labeled image directories into memory. The
// directory layout is the external contract: one subdirectory per class
// under the root, labels assigned from the sorted subdirectory order.
package imageio

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gorgonia.org/tensor"
)

// Classes returns the sorted class subdirectory names under root.
func Classes(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("imageio: read root: %w", err)
	}
	var classes []string
	for _, e := range entries {
		if e.IsDir() {
			classes = append(classes, e.Name())
		}
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("imageio: no class directories under %s", root)
	}
	sort.Strings(classes)
	return classes, nil
}

func imageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("imageio: read class dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadDir loads every image under root's class subdirectories. Decoding
// fans out over workers goroutines; sample order stays deterministic
// (classes sorted, then filenames sorted within each class). Images come
// back as grayscale (H, W) Float32 tensors with values in [0, 255], and
// labels as the class index of each sample.
func LoadDir(ctx context.Context, root string, workers int) ([]*tensor.Dense, []int, []string, error) {
	classes, err := Classes(root)
	if err != nil {
		return nil, nil, nil, err
	}
	if workers <= 0 {
		workers = 1
	}

	var paths []string
	var labels []int
	for idx, class := range classes {
		files, err := imageFiles(filepath.Join(root, class))
		if err != nil {
			return nil, nil, nil, err
		}
		if len(files) == 0 {
			return nil, nil, nil, fmt.Errorf("imageio: class %q under %s has no images", class, root)
		}
		for _, f := range files {
			paths = append(paths, f)
			labels = append(labels, idx)
		}
	}

	images := make([]*tensor.Dense, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan int)

	g.Go(func() error {
		defer close(jobs)
		for i := range paths {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case jobs <- i:
			}
		}
		return nil
	})
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range jobs {
				img, err := decodeGray(paths[i])
				if err != nil {
					return err
				}
				images[i] = img
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return images, labels, classes, nil
}

func decodeGray(path string) (*tensor.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imageio: open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("imageio: decode %s: %w", path, err)
	}
	bounds := img.Bounds()
	h, w := bounds.Dy(), bounds.Dx()
	if h == 0 || w == 0 {
		return nil, fmt.Errorf("imageio: empty image %s", path)
	}
	data := make([]float32, h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			data[y*w+x] = float32(r+g+b) / (3 * 257.0)
		}
	}
	return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(h, w), tensor.WithBacking(data)), nil
}
