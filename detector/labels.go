package detector

import "fmt"

// Labels is the COCO category table used by torchvision and the TensorFlow
// object detection zoo. Model class ids index directly into it.
var Labels = []string{
	"unlabeled", "person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "N/A", "stop sign", "parking meter", "bench", "bird", "cat", "dog",
	"horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "N/A", "backpack", "umbrella",
	"N/A", "N/A", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite",
	"baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket", "bottle", "N/A",
	"wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch", "potted plant", "bed",
	"N/A", "dining table", "N/A", "N/A", "toilet", "N/A", "tv", "laptop", "mouse", "remote", "keyboard",
	"cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "N/A", "book", "clock", "vase",
	"scissors", "teddy bear", "hair drier", "toothbrush",
}

// LabelFor maps a model class id to its label.
func LabelFor(classID int) string {
	if classID >= 0 && classID < len(Labels) {
		return Labels[classID]
	}
	return fmt.Sprintf("unknown%d", classID)
}
