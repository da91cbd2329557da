package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/tsaihsilo/receipt-recognition-app/internal/domain"
)

// Normalizer turns a source receipt into the artifact that gets
// uploaded: images are flattened and re-encoded as baseline JPEG, PDFs
// are validated and rewritten through the optimizer.
type Normalizer struct {
	quality int
	log     *zap.Logger
}

func NewNormalizer(quality int, log *zap.Logger) *Normalizer {
	return &Normalizer{quality: quality, log: log}
}

// KindOf classifies a source path by extension. Anything that is not a
// PDF is treated as an image and must decode as one.
func KindOf(path string) domain.ArtifactKind {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return domain.KindPDF
	}
	return domain.KindImage
}

// Prepare writes the normalized form of sourcePath to destPath. The
// source is read fully before the destination is touched, so the two
// paths may be the same file.
func (n *Normalizer) Prepare(sourcePath, destPath string) (*domain.NormalizedArtifact, error) {
	switch KindOf(sourcePath) {
	case domain.KindPDF:
		return n.preparePDF(sourcePath, destPath)
	default:
		return n.prepareImage(sourcePath, destPath)
	}
}

func (n *Normalizer) prepareImage(sourcePath, destPath string) (*domain.NormalizedArtifact, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, domain.DecodeError("read source image", err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.DecodeError(fmt.Sprintf("decode %s", filepath.Base(sourcePath)), err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: n.quality}); err != nil {
		return nil, domain.DecodeError("encode JPEG", err)
	}

	if err := writeFile(destPath, buf.Bytes()); err != nil {
		return nil, domain.WriteError("write normalized image", err)
	}

	n.log.Info("Image normalized",
		zap.String("source", sourcePath),
		zap.String("format", format),
		zap.String("output", destPath),
		zap.Int("quality", n.quality),
		zap.Int("size", buf.Len()))

	return &domain.NormalizedArtifact{
		SourcePath:  sourcePath,
		Path:        destPath,
		Kind:        domain.KindImage,
		ContentType: "image/jpeg",
		Size:        int64(buf.Len()),
	}, nil
}

func (n *Normalizer) preparePDF(sourcePath, destPath string) (*domain.NormalizedArtifact, error) {
	if _, err := os.Stat(sourcePath); err != nil {
		return nil, domain.DecodeError("read source document", err)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return nil, domain.WriteError("create output directory", err)
	}

	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed

	if err := api.OptimizeFile(sourcePath, destPath, cfg); err != nil {
		return nil, domain.DecodeError(fmt.Sprintf("validate %s", filepath.Base(sourcePath)), err)
	}

	pages, err := api.PageCountFile(destPath)
	if err != nil {
		return nil, domain.DecodeError("count document pages", err)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return nil, domain.WriteError("stat optimized document", err)
	}

	n.log.Info("Document optimized",
		zap.String("source", sourcePath),
		zap.String("output", destPath),
		zap.Int("pages", pages),
		zap.Int64("size", info.Size()))

	return &domain.NormalizedArtifact{
		SourcePath:  sourcePath,
		Path:        destPath,
		Kind:        domain.KindPDF,
		ContentType: "application/pdf",
		Size:        info.Size(),
		Pages:       pages,
	}, nil
}

// flatten composites the decoded image onto an opaque white canvas.
// Receipts are paper scans, so transparent regions become white and the
// encoded JPEG carries no alpha channel.
func flatten(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	return dst
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
