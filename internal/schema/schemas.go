package schema

// TileInfoSchema constrains tile index payloads before they reach the
// sampling strategies.
const TileInfoSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": {"type": ["integer", "string"]},
    "pdiId": {"type": "string"},
    "sensingTime": {"type": "string"},
    "coverArea": {"type": ["number", "string"]},
    "coverGeometry": {
      "type": "object",
      "required": ["type", "coordinates"],
      "properties": {
        "type": {"enum": ["Polygon", "MultiPolygon"]},
        "coordinates": {"type": "array"}
      }
    },
    "tileOrigin": {
      "type": "object",
      "properties": {
        "coordinates": {
          "type": "array",
          "items": {"type": "number"},
          "minItems": 2
        },
        "crs": {
          "type": "object",
          "properties": {
            "properties": {
              "type": "object",
              "properties": {
                "name": {"type": "string", "format": "epsg_code"}
              }
            }
          }
        }
      }
    }
  }
}`

// SourceSchema constrains one entry of the sampling source catalog.
const SourceSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "name", "type"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string", "minLength": 1},
    "type": {
      "enum": ["s2-l1c-archive", "region-time", "vector-layer", "legacy-results"]
    },
    "description": {"type": "string"},
    "layer": {"type": "integer"},
    "window_width": {"type": "integer", "minimum": 1},
    "window_height": {"type": "integer", "minimum": 1},
    "resolution": {"type": "number", "exclusiveMinimum": 0},
    "buffer": {"type": "integer", "minimum": 0},
    "max_cloud_cover": {"type": "number", "minimum": 0, "maximum": 1},
    "time_from": {"type": "string"},
    "time_to": {"type": "string"},
    "aoi": {"type": "object"},
    "layers": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title"],
        "properties": {
          "title": {"type": "string"},
          "classes": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["title", "color"],
              "properties": {
                "title": {"type": "string"},
                "color": {"type": "string", "format": "hex_color"}
              }
            }
          }
        }
      }
    }
  }
}`
